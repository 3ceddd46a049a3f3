package address

import (
	"context"
	"strings"
)

// Candidate is a verification provider's normalized suggestion for a
// submitted address. Message carries the provider's explanation when it
// could not produce a confident match.
type Candidate struct {
	Street  string
	City    string
	State   string
	Zip5    string
	Zip4    string
	Message string
}

// Provider is one external address verification backend. Implementations
// return an error only for transport or provider-side failures; "no match"
// comes back as a Candidate with empty fields and an explanatory Message.
type Provider interface {
	Lookup(ctx context.Context, addr *ParsedAddress) (*Candidate, error)
}

// Result is the popup-ready outcome of one verification attempt. It is
// serialized directly into the API response.
type Result struct {
	OK              bool   `json:"ok"`
	Found           bool   `json:"found"`
	ShowBox         bool   `json:"showBox"`
	EnteredLine     string `json:"enteredLine"`
	RecommendedLine string `json:"recommendedLine"`
	Message         string `json:"message"`
}

const (
	msgUnconfigured = "Address verification is not configured."
	msgParseHint    = `Please enter address like: "Street, City, ST ZIP".`
	msgNoMatch      = "No match found. You can edit the address or continue."
	msgDiffers      = "We found a standardized version of your address. Please confirm."
)

// Reconciler decides whether a submitted address should trigger a
// confirmation prompt. A nil provider means verification is unconfigured;
// Verify then degrades to always prompting instead of silently passing.
type Reconciler struct {
	provider Provider
}

// NewReconciler constructs a Reconciler around a provider, which may be nil.
func NewReconciler(provider Provider) *Reconciler {
	return &Reconciler{provider: provider}
}

// Verify runs the full reconciliation: parse, provider lookup, canonical
// comparison. Every failure mode yields a well-formed Result with
// ShowBox set; nothing here is a hard error.
func (r *Reconciler) Verify(ctx context.Context, raw string) Result {
	trimmed := strings.TrimSpace(raw)

	if r.provider == nil {
		return Result{ShowBox: true, EnteredLine: trimmed, Message: msgUnconfigured}
	}

	parsed, ok := Parse(raw)
	if !ok {
		return Result{OK: true, ShowBox: true, EnteredLine: trimmed, Message: msgParseHint}
	}

	enteredLine := FormatLine(parsed.Street, parsed.City, parsed.State, parsed.Zip5, "")

	cand, err := r.provider.Lookup(ctx, parsed)
	if err != nil {
		return Result{ShowBox: true, EnteredLine: enteredLine, Message: err.Error()}
	}
	if cand == nil {
		return Result{OK: true, ShowBox: true, EnteredLine: enteredLine, Message: msgNoMatch}
	}

	// Found means the provider answered with a complete street/city/state/zip5.
	found := cand.Street != "" && cand.City != "" && cand.State != "" && cand.Zip5 != ""
	if !found {
		msg := cand.Message
		if msg == "" {
			msg = msgNoMatch
		}
		return Result{OK: true, ShowBox: true, EnteredLine: enteredLine, Message: msg}
	}

	recommendedLine := FormatLine(cand.Street, cand.City, cand.State, cand.Zip5, cand.Zip4)
	showBox := Canonical(enteredLine) != Canonical(recommendedLine)
	msg := ""
	if showBox {
		msg = msgDiffers
	}
	return Result{
		OK:              true,
		Found:           true,
		ShowBox:         showBox,
		EnteredLine:     enteredLine,
		RecommendedLine: recommendedLine,
		Message:         msg,
	}
}
