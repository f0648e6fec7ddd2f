package recommend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NotApplicable is what the calculator returns instead of a number when a product has no SKU.
const NotApplicable = "No Aplica"

// Consumption is the calculator's answer for one product.
type Consumption struct {
	Monthly       float64
	Applicable    bool
	ReferenceUsed string
}

// ConsumptionResult maps product name to its computed consumption.
type ConsumptionResult map[string]Consumption

type consumptionWire struct {
	Monthly       json.RawMessage `json:"consumo_mensual"`
	ReferenceUsed json.RawMessage `json:"referencia_usada,omitempty"`
}

// UnmarshalJSON accepts a number or a "No Aplica" style string for consumo_mensual and a
// string or number for referencia_usada.
func (c *Consumption) UnmarshalJSON(data []byte) error {
	var wire consumptionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	monthly, applicable, err := decodeMonthly(wire.Monthly)
	if err != nil {
		return err
	}
	ref, err := decodeLooseString(wire.ReferenceUsed)
	if err != nil {
		return fmt.Errorf("decode referencia_usada: %w", err)
	}
	*c = Consumption{Monthly: monthly, Applicable: applicable, ReferenceUsed: ref}
	return nil
}

// MarshalJSON mirrors the calculator's wire format.
func (c Consumption) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if c.Applicable {
		out["consumo_mensual"] = c.Monthly
	} else {
		out["consumo_mensual"] = NotApplicable
	}
	if c.ReferenceUsed != "" {
		out["referencia_usada"] = c.ReferenceUsed
	}
	return json.Marshal(out)
}

// DecodeMonthly parses a bare consumo_mensual value.
func DecodeMonthly(raw json.RawMessage) (float64, bool, error) {
	return decodeMonthly(raw)
}

func decodeMonthly(raw json.RawMessage) (float64, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, false, nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return 0, false, err
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return v, true, nil
		}
		return 0, false, nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, false, fmt.Errorf("decode consumo_mensual: %w", err)
	}
	return v, true, nil
}

func decodeLooseString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
