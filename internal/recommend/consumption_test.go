package recommend

import (
	"encoding/json"
	"testing"
)

func TestConsumptionDecode(t *testing.T) {
	payload := `{
		"Papel": {"consumo_mensual": 12.5, "referencia_usada": "5678"},
		"Jabón": {"consumo_mensual": "No Aplica"},
		"Toallas": {"consumo_mensual": "7", "referencia_usada": 9000},
		"Dispensador": {"consumo_mensual": null}
	}`
	var result ConsumptionResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	tests := []struct {
		product    string
		monthly    float64
		applicable bool
		ref        string
	}{
		{"Papel", 12.5, true, "5678"},
		{"Jabón", 0, false, ""},
		{"Toallas", 7, true, "9000"},
		{"Dispensador", 0, false, ""},
	}
	for _, tc := range tests {
		got, ok := result[tc.product]
		if !ok {
			t.Fatalf("missing %s", tc.product)
		}
		if got.Monthly != tc.monthly || got.Applicable != tc.applicable || got.ReferenceUsed != tc.ref {
			t.Fatalf("%s: unexpected %+v", tc.product, got)
		}
	}
}

func TestConsumptionMarshal(t *testing.T) {
	payload, err := json.Marshal(Consumption{Applicable: false})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"consumo_mensual":"No Aplica"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	payload, err = json.Marshal(Consumption{Monthly: 4, Applicable: true, ReferenceUsed: "1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"consumo_mensual":4,"referencia_usada":"1"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestDecodeMonthlyRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeMonthly(json.RawMessage(`{"x":1}`)); err == nil {
		t.Fatalf("expected error for object value")
	}
}
