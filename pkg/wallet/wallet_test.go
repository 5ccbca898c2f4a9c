package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{"ready", Ready{}},
		{"  select cred-1 ", SelectCredential{ID: "cred-1"}},
		{"delete cred-2", DeleteCredential{ID: "cred-2"}},
		{"scan", ScanIssuanceOffer{}},
		{"offer openid-credential-offer://?credential_offer=abc def", IssuanceOffer{Offer: "openid-credential-offer://?credential_offer=abc def"}},
		{"INCREMENT", Increment{}},
		{"decrement", Decrement{}},
		{"watch", StartWatch{}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseEvent(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEvent_Errors(t *testing.T) {
	_, err := ParseEvent("launch")
	require.ErrorIs(t, err, ErrUnknownCommand)

	_, err = ParseEvent("select")
	require.Error(t, err)
}

func TestEvent_Encoding(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0}, wire.Marshal(Ready{}))
	assert.Equal(t, []byte{7, 0, 0, 0}, wire.Marshal(StartWatch{}))

	got := wire.Marshal(SelectCredential{ID: "ab"})
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 'a', 'b'}, got)
}

func TestDecodeView(t *testing.T) {
	id := "cred-1"
	name := "Employee ID"
	vm := ViewModel{
		ActiveView: CredentialDetail,
		CredentialView: CredentialView{
			ID: &id,
			Credentials: []CredentialSummary{{
				ID:   id,
				Name: &name,
				Logo: &Image{Data: "iVBORw0", MediaType: "image/png"},
			}},
		},
		IssuanceView: IssuanceView{TxCode: TxCode{InputMode: "numeric", Length: 6}},
		Count:        Count{Text: "3", Confirmed: true},
	}

	got, err := DecodeView(wire.Marshal(vm))
	require.NoError(t, err)
	assert.Equal(t, vm, got)
	assert.Equal(t, "credential_detail", got.ActiveView.String())
}

func TestDecodeView_Rejects(t *testing.T) {
	_, err := DecodeView([]byte{99, 0, 0, 0})
	require.ErrorIs(t, err, wire.ErrUnknownVariant)

	b := wire.Marshal(ViewModel{})
	_, err = DecodeView(b[:len(b)-1])
	require.ErrorIs(t, err, wire.ErrMalformed)
}
