package address

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const smartyEndpoint = "https://us-street.api.smarty.com/street-address"

// SmartyProvider verifies addresses through a Smarty-style JSON REST API.
// An empty candidate array is the provider's "no match" signal.
type SmartyProvider struct {
	authID    string
	authToken string
	endpoint  string
	client    *http.Client
}

// NewSmartyProvider constructs the JSON REST adapter.
func NewSmartyProvider(authID, authToken string) *SmartyProvider {
	return &SmartyProvider{
		authID:    authID,
		authToken: authToken,
		endpoint:  smartyEndpoint,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type smartyCandidate struct {
	DeliveryLine1 string `json:"delivery_line_1"`
	Components    struct {
		CityName          string `json:"city_name"`
		StateAbbreviation string `json:"state_abbreviation"`
		Zipcode           string `json:"zipcode"`
		Plus4Code         string `json:"plus4_code"`
	} `json:"components"`
}

// Lookup queries the street-address endpoint with the structured fields.
func (p *SmartyProvider) Lookup(ctx context.Context, addr *ParsedAddress) (*Candidate, error) {
	q := url.Values{}
	q.Set("auth-id", p.authID)
	q.Set("auth-token", p.authToken)
	q.Set("street", addr.Street)
	q.Set("city", addr.City)
	q.Set("state", addr.State)
	if addr.Zip5 != "" {
		q.Set("zipcode", addr.Zip5)
	}
	q.Set("candidates", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build smarty request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("smarty verify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("smarty verify: unexpected status %d", resp.StatusCode)
	}

	var candidates []smartyCandidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("decode smarty response: %w", err)
	}
	if len(candidates) == 0 {
		return &Candidate{Message: "No match found for this address."}, nil
	}
	c := candidates[0]
	return &Candidate{
		Street: c.DeliveryLine1,
		City:   c.Components.CityName,
		State:  c.Components.StateAbbreviation,
		Zip5:   c.Components.Zipcode,
		Zip4:   c.Components.Plus4Code,
	}, nil
}
