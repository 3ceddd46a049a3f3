package address

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const uspsEndpoint = "https://secure.shippingapis.com/ShippingAPI.dll"

// USPSProvider verifies addresses through the USPS Web Tools Verify API,
// which speaks XML over a query parameter.
type USPSProvider struct {
	userID   string
	endpoint string
	client   *http.Client
}

// NewUSPSProvider constructs the USPS adapter. The shared client carries an
// explicit timeout so a slow provider cannot hold intake requests forever.
func NewUSPSProvider(userID string) *USPSProvider {
	return &USPSProvider{
		userID:   userID,
		endpoint: uspsEndpoint,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}
}

type uspsRequest struct {
	XMLName  xml.Name    `xml:"AddressValidateRequest"`
	UserID   string      `xml:"USERID,attr"`
	Revision int         `xml:"Revision"`
	Address  uspsAddress `xml:"Address"`
}

type uspsAddress struct {
	ID       string `xml:"ID,attr"`
	Address1 string `xml:"Address1"`
	Address2 string `xml:"Address2"`
	City     string `xml:"City"`
	State    string `xml:"State"`
	Zip5     string `xml:"Zip5"`
	Zip4     string `xml:"Zip4"`
}

type uspsResponse struct {
	XMLName xml.Name `xml:"AddressValidateResponse"`
	Address struct {
		Address2 string     `xml:"Address2"`
		City     string     `xml:"City"`
		State    string     `xml:"State"`
		Zip5     string     `xml:"Zip5"`
		Zip4     string     `xml:"Zip4"`
		Error    *uspsError `xml:"Error"`
	} `xml:"Address"`
}

type uspsError struct {
	Description string `xml:"Description"`
}

// Lookup calls the Verify API. USPS reports "no match" inside an <Error>
// element rather than an HTTP status, so those become Candidates with a
// Message, not errors.
func (p *USPSProvider) Lookup(ctx context.Context, addr *ParsedAddress) (*Candidate, error) {
	reqBody := uspsRequest{
		UserID:   p.userID,
		Revision: 1,
		Address: uspsAddress{
			ID:       "0",
			Address2: addr.Street,
			City:     addr.City,
			State:    addr.State,
			Zip5:     addr.Zip5,
		},
	}
	payload, err := xml.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal usps request: %w", err)
	}

	q := url.Values{}
	q.Set("API", "Verify")
	q.Set("XML", string(payload))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build usps request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usps verify: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read usps response: %w", err)
	}

	// Top-level <Error> envelope (bad user id, malformed XML).
	if strings.Contains(string(body), "<Error>") && !strings.Contains(string(body), "<AddressValidateResponse>") {
		var envelope struct {
			Description string `xml:"Description"`
		}
		msg := "USPS could not verify this address."
		if xml.Unmarshal(body, &envelope) == nil && strings.TrimSpace(envelope.Description) != "" {
			msg = strings.TrimSpace(envelope.Description)
		}
		return &Candidate{Message: msg}, nil
	}

	var parsed uspsResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode usps response: %w", err)
	}
	if parsed.Address.Error != nil {
		msg := strings.TrimSpace(parsed.Address.Error.Description)
		if msg == "" {
			msg = "USPS could not verify this address."
		}
		return &Candidate{Message: msg}, nil
	}
	return &Candidate{
		Street: strings.TrimSpace(parsed.Address.Address2),
		City:   strings.TrimSpace(parsed.Address.City),
		State:  strings.TrimSpace(parsed.Address.State),
		Zip5:   strings.TrimSpace(parsed.Address.Zip5),
		Zip4:   strings.TrimSpace(parsed.Address.Zip4),
	}, nil
}
