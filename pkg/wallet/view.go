package wallet

import (
	"fmt"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// Aspect is the screen the wallet core wants shown.
type Aspect uint32

const (
	CredentialList Aspect = iota
	CredentialDetail
	IssuanceScan
	IssuanceOfferView
	PresentationScan
	ErrorView
)

var aspectNames = [...]string{
	"credential_list",
	"credential_detail",
	"issuance_scan",
	"issuance_offer",
	"presentation_scan",
	"error",
}

func (a Aspect) String() string {
	if int(a) < len(aspectNames) {
		return aspectNames[a]
	}
	return fmt.Sprintf("aspect(%d)", uint32(a))
}

func (a Aspect) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

type Image struct {
	Data      string `json:"data"`
	MediaType string `json:"media_type"`
}

type CredentialSummary struct {
	ID              string  `json:"id"`
	BackgroundColor *string `json:"background_color,omitempty"`
	Color           *string `json:"color,omitempty"`
	Issuer          *string `json:"issuer,omitempty"`
	Logo            *Image  `json:"logo,omitempty"`
	LogoURL         *string `json:"logo_url,omitempty"`
	Background      *Image  `json:"background,omitempty"`
	BackgroundURL   *string `json:"background_url,omitempty"`
	Name            *string `json:"name,omitempty"`
}

type CredentialView struct {
	ID          *string             `json:"id,omitempty"`
	Credentials []CredentialSummary `json:"credentials"`
}

type TxCode struct {
	InputMode   string `json:"input_mode"`
	Length      int32  `json:"length"`
	Description string `json:"description"`
}

type IssuanceView struct {
	Issuer     string            `json:"issuer"`
	IssuerName string            `json:"issuer_name"`
	Offered    CredentialSummary `json:"offered"`
	TxCode     TxCode            `json:"tx_code"`
}

type Count struct {
	Text      string `json:"text"`
	Confirmed bool   `json:"confirmed"`
}

// ViewModel is the wallet core's render output.
type ViewModel struct {
	ActiveView     Aspect         `json:"active_view"`
	CredentialView CredentialView `json:"credential_view"`
	IssuanceView   IssuanceView   `json:"issuance_view"`
	Error          string         `json:"error"`
	Count          Count          `json:"count"`
}

// DecodeView decodes the bytes returned by the core's view call.
func DecodeView(b []byte) (ViewModel, error) {
	return wire.Decode(b, readViewModel)
}

func readViewModel(d *wire.Decoder) ViewModel {
	var vm ViewModel
	tag := d.Variant()
	if tag >= uint32(len(aspectNames)) {
		d.Unknown("Aspect", tag)
		return vm
	}
	vm.ActiveView = Aspect(tag)
	vm.CredentialView.ID = d.OptionalString()
	n := d.Len()
	for i := 0; i < n && d.Err() == nil; i++ {
		vm.CredentialView.Credentials = append(vm.CredentialView.Credentials, readSummary(d))
	}
	vm.IssuanceView = IssuanceView{
		Issuer:     d.String(),
		IssuerName: d.String(),
		Offered:    readSummary(d),
		TxCode: TxCode{
			InputMode:   d.String(),
			Length:      d.I32(),
			Description: d.String(),
		},
	}
	vm.Error = d.String()
	vm.Count = Count{Text: d.String(), Confirmed: d.Bool()}
	return vm
}

func readSummary(d *wire.Decoder) CredentialSummary {
	return CredentialSummary{
		ID:              d.String(),
		BackgroundColor: d.OptionalString(),
		Color:           d.OptionalString(),
		Issuer:          d.OptionalString(),
		Logo:            readImage(d),
		LogoURL:         d.OptionalString(),
		Background:      readImage(d),
		BackgroundURL:   d.OptionalString(),
		Name:            d.OptionalString(),
	}
}

func readImage(d *wire.Decoder) *Image {
	if !d.Option() {
		return nil
	}
	return &Image{Data: d.String(), MediaType: d.String()}
}

// MarshalWire encodes the view the way the core does. The shell never sends a
// view to the core; this exists for fakes and tests.
func (vm ViewModel) MarshalWire(e *wire.Encoder) {
	e.Variant(uint32(vm.ActiveView))
	e.OptionalString(vm.CredentialView.ID)
	e.Len(len(vm.CredentialView.Credentials))
	for _, c := range vm.CredentialView.Credentials {
		c.MarshalWire(e)
	}
	e.String(vm.IssuanceView.Issuer)
	e.String(vm.IssuanceView.IssuerName)
	vm.IssuanceView.Offered.MarshalWire(e)
	e.String(vm.IssuanceView.TxCode.InputMode)
	e.I32(vm.IssuanceView.TxCode.Length)
	e.String(vm.IssuanceView.TxCode.Description)
	e.String(vm.Error)
	e.String(vm.Count.Text)
	e.Bool(vm.Count.Confirmed)
}

func (c CredentialSummary) MarshalWire(e *wire.Encoder) {
	e.String(c.ID)
	e.OptionalString(c.BackgroundColor)
	e.OptionalString(c.Color)
	e.OptionalString(c.Issuer)
	writeImage(e, c.Logo)
	e.OptionalString(c.LogoURL)
	writeImage(e, c.Background)
	e.OptionalString(c.BackgroundURL)
	e.OptionalString(c.Name)
}

func writeImage(e *wire.Encoder, img *Image) {
	e.Option(img != nil)
	if img != nil {
		e.String(img.Data)
		e.String(img.MediaType)
	}
}
