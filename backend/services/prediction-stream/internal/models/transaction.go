package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FeatureCount is the number of anonymized V features on a transaction.
const FeatureCount = 28

// Transaction is a synthetic card transaction: time, amount and the V1..V28 features.
type Transaction struct {
	ID       string
	Time     int64
	Amount   float64
	Features [FeatureCount]float64
}

// Feature returns V<n> (1-based).
func (t Transaction) Feature(n int) float64 {
	return t.Features[n-1]
}

// Signals extracts the fields the scorer looks at.
func (t Transaction) Signals() Signals {
	v1, v3, amount := t.Feature(1), t.Feature(3), t.Amount
	return Signals{V1: &v1, V3: &v3, Amount: &amount}
}

// MarshalJSON writes transaction_id, Time, Amount, V1..V28 in that order.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"transaction_id":`)
	id, err := json.Marshal(t.ID)
	if err != nil {
		return nil, err
	}
	buf.Write(id)
	buf.WriteString(`,"Time":`)
	buf.WriteString(strconv.FormatInt(t.Time, 10))
	buf.WriteString(`,"Amount":`)
	buf.WriteString(strconv.FormatFloat(t.Amount, 'f', -1, 64))
	for i, v := range t.Features {
		fmt.Fprintf(&buf, `,"V%d":`, i+1)
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the shape written by MarshalJSON. Missing fields stay zero.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var out Transaction
	if raw, ok := fields["transaction_id"]; ok {
		if err := json.Unmarshal(raw, &out.ID); err != nil {
			return fmt.Errorf("transaction_id: %w", err)
		}
	}
	if raw, ok := fields["Time"]; ok {
		if err := json.Unmarshal(raw, &out.Time); err != nil {
			return fmt.Errorf("Time: %w", err)
		}
	}
	if raw, ok := fields["Amount"]; ok {
		if err := json.Unmarshal(raw, &out.Amount); err != nil {
			return fmt.Errorf("Amount: %w", err)
		}
	}
	for i := range out.Features {
		key := "V" + strconv.Itoa(i+1)
		if raw, ok := fields[key]; ok {
			if err := json.Unmarshal(raw, &out.Features[i]); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	*t = out
	return nil
}

// Signals are the optional transaction fields that drive the fraud score.
// A nil field means the client did not send it.
type Signals struct {
	V1     *float64 `json:"V1"`
	V3     *float64 `json:"V3"`
	Amount *float64 `json:"Amount"`
}
