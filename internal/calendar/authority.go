package calendar

import "context"

// AuthorityProvider answers who the calendar authority is. The engine never
// inspects accounts itself; resolution and config update verify the caller
// through this capability, and slashed funds are directed to the account it
// reports. Implementations may consult an external identity system.
type AuthorityProvider interface {
	// IsAuthority reports whether the given account is the authority.
	IsAuthority(ctx context.Context, account string) (bool, error)

	// Account returns the authority account slashed stakes are sent to.
	Account(ctx context.Context) (string, error)
}

// StaticAuthority is an AuthorityProvider pinned to a single account, the
// one named in the calendar bootstrap file.
type StaticAuthority struct {
	account string
}

// NewStaticAuthority returns a provider that recognizes only account.
func NewStaticAuthority(account string) *StaticAuthority {
	return &StaticAuthority{account: account}
}

func (a *StaticAuthority) IsAuthority(_ context.Context, account string) (bool, error) {
	return account != "" && account == a.account, nil
}

func (a *StaticAuthority) Account(_ context.Context) (string, error) {
	return a.account, nil
}
