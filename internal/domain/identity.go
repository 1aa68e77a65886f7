package domain

import "strings"

// FigiEntry is one mapping returned by the identifier-mapping provider.
type FigiEntry struct {
	Ticker       string `json:"ticker"`
	Name         string `json:"name"`
	SecurityName string `json:"securityName"`
	ISIN         string `json:"isin"`
	SecurityType string `json:"securityType"`
	Country      string `json:"country"`
	Currency     string `json:"currency"`
	ExchCode     string `json:"exchCode"`
	MICCode      string `json:"micCode"`
}

// DisplayName returns name, then securityName, then fallback.
func (e FigiEntry) DisplayName(fallback string) string {
	if e.Name != "" {
		return e.Name
	}
	if e.SecurityName != "" {
		return e.SecurityName
	}
	return fallback
}

// Exchange prefers the MIC code over the Bloomberg exchange code.
func (e FigiEntry) Exchange() string {
	if e.MICCode != "" {
		return strings.ToUpper(e.MICCode)
	}
	return strings.ToUpper(e.ExchCode)
}

// Identity is what a ticker or ISIN resolves to. ISIN and Ticker may be
// unknown and then serialize as null.
type Identity struct {
	Name   string  `json:"name"`
	ISIN   *string `json:"isin"`
	Ticker *string `json:"ticker"`
}
