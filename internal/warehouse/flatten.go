package warehouse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var ErrMissingMemo = errors.New("agent response did not contain the expected 'investment_memo' object")

// memoSections are merged into the row in this order; later keys win.
var memoSections = []string{
	"executive_summary",
	"company_overview",
	"problem_and_market_opportunity",
	"solution_and_product",
	"team",
	"traction_and_gtm",
	"business_model",
	"financial_projections",
	"the_ask",
	"potential_risks",
}

// fieldSet is an insertion-ordered map; overwriting keeps the original slot.
type fieldSet struct {
	keys []string
	vals map[string]gjson.Result
}

func newFieldSet() *fieldSet {
	return &fieldSet{vals: map[string]gjson.Result{}}
}

func (f *fieldSet) set(k string, v gjson.Result) {
	if _, ok := f.vals[k]; !ok {
		f.keys = append(f.keys, k)
	}
	f.vals[k] = v
}

func (f *fieldSet) pop(k string) (gjson.Result, bool) {
	v, ok := f.vals[k]
	if !ok {
		return gjson.Result{}, false
	}
	delete(f.vals, k)
	for i, key := range f.keys {
		if key == k {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
	return v, true
}

// Flatten maps the agent's nested memo onto the fixed analysis columns.
// Keys without a column are returned in document order as dropped.
// Bookkeeping columns (ids, url, timestamps) are left for the caller.
func Flatten(doc []byte) (*AnalysisRow, []string, error) {
	if !gjson.ValidBytes(doc) {
		return nil, nil, fmt.Errorf("flatten: invalid JSON")
	}
	memo := gjson.GetBytes(doc, "investment_memo")
	if !memo.IsObject() || len(memo.Map()) == 0 {
		return nil, nil, ErrMissingMemo
	}

	fields := newFieldSet()
	for _, k := range []string{"company_name", "date", "author"} {
		fields.set(k, memo.Get(k))
	}

	for _, section := range memoSections {
		v := memo.Get(section)
		if !v.IsObject() {
			continue
		}
		v.ForEach(func(k, child gjson.Result) bool {
			fields.set(k.String(), child)
			return true
		})
	}

	if ms, ok := fields.vals["market_size"]; ok && ms.IsObject() {
		fields.pop("market_size")
		fields.set("market_size_tam", ms.Get("tam"))
		fields.set("market_size_som", ms.Get("som"))
	}

	if km, ok := fields.vals["key_metrics"]; ok && km.IsObject() {
		fields.pop("key_metrics")
		km.ForEach(func(k, child gjson.Result) bool {
			fields.set(k.String(), child)
			return true
		})
	}

	if ask, ok := fields.pop("the_ask"); ok {
		fields.set("the_ask_summary", ask)
	}

	row := &AnalysisRow{}
	var dropped []string
	for _, k := range fields.keys {
		if bookkeeping[k] || !HasColumn(k) {
			dropped = append(dropped, k)
			continue
		}
		s, err := cellText(fields.vals[k])
		if err != nil {
			return nil, nil, fmt.Errorf("flatten %s: %w", k, err)
		}
		row.Set(k, s)
	}
	return row, dropped, nil
}

// cellText renders a JSON value as warehouse text. Containers become compact
// JSON in document order; null and missing values become NULL.
func cellText(v gjson.Result) (*string, error) {
	if !v.Exists() {
		return nil, nil
	}
	switch v.Type {
	case gjson.Null:
		return nil, nil
	case gjson.String:
		return strPtr(v.String()), nil
	case gjson.True:
		return strPtr("true"), nil
	case gjson.False:
		return strPtr("false"), nil
	case gjson.Number:
		return strPtr(v.Raw), nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err != nil {
			return nil, err
		}
		return strPtr(buf.String()), nil
	}
}
