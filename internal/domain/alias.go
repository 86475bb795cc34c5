package domain

import "strings"

// InstitutionDomains is a pair of mail domains that belong to the same person,
// e.g. clemson.edu and g.clemson.edu.
type InstitutionDomains struct {
	Primary string
	Alias   string
}

// AliasEmail returns the sibling address under the other institutional domain.
// ok is false when the address belongs to neither domain.
func (d InstitutionDomains) AliasEmail(email string) (string, bool) {
	email = NormalizeEmail(email)
	primary := "@" + strings.ToLower(d.Primary)
	alias := "@" + strings.ToLower(d.Alias)
	if d.Primary == "" || d.Alias == "" {
		return "", false
	}
	switch {
	case strings.HasSuffix(email, primary):
		return strings.TrimSuffix(email, primary) + alias, true
	case strings.HasSuffix(email, alias):
		return strings.TrimSuffix(email, alias) + primary, true
	}
	return "", false
}

// CandidateAddresses lists the addresses a member may reply from: the address
// itself, followed by its institutional alias when one exists.
func (d InstitutionDomains) CandidateAddresses(email string) []string {
	addrs := []string{NormalizeEmail(email)}
	if alias, ok := d.AliasEmail(email); ok {
		addrs = append(addrs, alias)
	}
	return addrs
}
