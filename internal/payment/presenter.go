package payment

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	ModeRedirect = "redirect"
	ModeEmbedded = "embedded"

	// PlatformHeader tells which checkout the client can show.
	PlatformHeader = "X-Client-Platform"
)

// Payer is what a checkout needs to know about the paying user.
type Payer struct {
	Name  string
	Email string
	Phone string
}

type Checkout struct {
	Mode        string           `json:"mode"`
	RedirectURL string           `json:"redirect_url,omitempty"`
	Options     *CheckoutOptions `json:"options,omitempty"`
}

// CheckoutOptions is handed to the embedded checkout widget as-is.
type CheckoutOptions struct {
	Key         string  `json:"key"`
	OrderID     string  `json:"order_id"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Prefill     Prefill `json:"prefill"`
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Presenter turns a pending order into what the client needs to complete
// payment. Verification does not depend on which presenter was used.
type Presenter interface {
	Present(o *Order, p Payer) Checkout
}

// RedirectPresenter sends browsers to a hosted checkout page.
type RedirectPresenter struct {
	CheckoutURL string
	KeyID       string
}

func (r RedirectPresenter) Present(o *Order, p Payer) Checkout {
	q := url.Values{}
	q.Set("key", r.KeyID)
	q.Set("order_id", o.gatewayID())
	q.Set("amount", strconv.FormatInt(o.Amount, 10))
	q.Set("currency", o.Currency)
	if p.Email != "" {
		q.Set("email", p.Email)
	}

	sep := "?"
	if strings.Contains(r.CheckoutURL, "?") {
		sep = "&"
	}
	return Checkout{
		Mode:        ModeRedirect,
		RedirectURL: r.CheckoutURL + sep + q.Encode(),
	}
}

// EmbeddedPresenter returns options for the in-app checkout widget.
type EmbeddedPresenter struct {
	KeyID        string
	MerchantName string
}

func (e EmbeddedPresenter) Present(o *Order, p Payer) Checkout {
	return Checkout{
		Mode: ModeEmbedded,
		Options: &CheckoutOptions{
			Key:         e.KeyID,
			OrderID:     o.gatewayID(),
			Amount:      o.Amount,
			Currency:    o.Currency,
			Name:        e.MerchantName,
			Description: describePurpose(o.Purpose),
			Prefill: Prefill{
				Name:    p.Name,
				Email:   p.Email,
				Contact: p.Phone,
			},
		},
	}
}

type Presenters struct {
	Redirect Presenter
	Embedded Presenter
}

func NewPresenters(keyID, checkoutURL, merchantName string) Presenters {
	return Presenters{
		Redirect: RedirectPresenter{CheckoutURL: checkoutURL, KeyID: keyID},
		Embedded: EmbeddedPresenter{KeyID: keyID, MerchantName: merchantName},
	}
}

// For picks the presenter for a client platform: "web" gets the redirect,
// everything else the embedded widget.
func (p Presenters) For(platform string) Presenter {
	if strings.EqualFold(strings.TrimSpace(platform), "web") {
		return p.Redirect
	}
	return p.Embedded
}

func describePurpose(purpose string) string {
	switch purpose {
	case PurposePackage:
		return "Package purchase"
	case PurposeConsultation:
		return "Consultation"
	case PurposeSession:
		return "Astrologer session"
	default:
		return "Wallet top-up"
	}
}
