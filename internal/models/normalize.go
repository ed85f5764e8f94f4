package models

import "strings"

// The Normalize methods run when records are decoded from storage. They map
// missing or unknown values onto defined defaults and report whether the
// record is usable at all.

func (r *ServiceRequest) Normalize() bool {
	if strings.TrimSpace(r.ID) == "" {
		return false
	}
	switch r.Status {
	case StatusOpen, StatusMatched:
	default:
		r.Status = StatusOpen
	}
	return true
}

func (p *Provider) Normalize() bool {
	if strings.TrimSpace(p.ID) == "" {
		return false
	}
	if p.WalletCredits < 0 {
		p.WalletCredits = 0
	}
	return true
}

func (t *TaxiRequest) Normalize() bool {
	if strings.TrimSpace(t.ID) == "" {
		return false
	}
	area, ok := ParseArea(string(t.Area))
	if !ok {
		return false
	}
	t.Area = area
	switch t.Status {
	case TaxiAvailable, TaxiConnected:
	default:
		t.Status = TaxiAvailable
	}
	return true
}

func (c *TaxiCredentials) Normalize() bool {
	if strings.TrimSpace(c.ID) == "" {
		return false
	}
	switch c.Status {
	case CredentialsPending, CredentialsApproved, CredentialsRejected:
	default:
		c.Status = CredentialsPending
	}
	return true
}

func (e *ActivityLogEntry) Normalize() bool { return e.Type != "" }

func (f *Feedback) Normalize() bool { return f.ProviderID != "" && f.Rating != 0 }

func (r *TesterReport) Normalize() bool { return r.ID != "" }

// ParseArea matches one of the fixed areas case-insensitively.
func ParseArea(s string) (Area, bool) {
	s = strings.TrimSpace(s)
	for _, a := range AllAreas {
		if strings.EqualFold(string(a), s) {
			return a, true
		}
	}
	return "", false
}
