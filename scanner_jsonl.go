package tablens

import (
	"github.com/go-faster/jx"

	"github.com/nao1215/tablens/domain/model"
)

// JSONLinesScanner infers schemas from JSON Lines content, one object per
// line. Keys become columns in first-seen order; a key absent from earlier
// records joins as a trailing nullable column, and columns it was absent
// from become nullable in turn.
type JSONLinesScanner struct {
	keyedScanner
}

// NewJSONLinesScanner creates a scanner reading from the start of the
// mapping.
func NewJSONLinesScanner(m *MappedFile) *JSONLinesScanner {
	return &JSONLinesScanner{keyedScanner{
		lr:     NewLineReader(m),
		decode: decodeJSONFields,
	}}
}

// NewJSONLinesScannerAt creates a scanner resuming at a byte offset.
func NewJSONLinesScannerAt(m *MappedFile, offset int64) *JSONLinesScanner {
	s := NewJSONLinesScanner(m)
	if offset > 0 {
		s.off = offset
	}
	return s
}

// decodeJSONFields decodes one JSON object line into field observations.
// Strings that look like timestamps observe as DATETIME, numbers split
// into INTEGER and REAL by their literal form, and nested objects and
// arrays observe as TEXT since the table shows them as their raw JSON.
func decodeJSONFields(line []byte) ([]model.FieldObservation, error) {
	d := jx.DecodeBytes(line)
	var fields []model.FieldObservation
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			if err != nil {
				return err
			}
			typ := model.ColumnTypeText
			if model.IsDatetime(v) {
				typ = model.ColumnTypeDatetime
			}
			fields = append(fields, model.FieldObservation{Name: key, Type: typ})
		case jx.Number:
			num, err := d.Num()
			if err != nil {
				return err
			}
			fields = append(fields, model.FieldObservation{Name: key, Type: numberType(num)})
		case jx.Bool:
			if _, err := d.Bool(); err != nil {
				return err
			}
			fields = append(fields, model.FieldObservation{Name: key, Type: model.ColumnTypeBool})
		case jx.Null:
			if err := d.Null(); err != nil {
				return err
			}
			fields = append(fields, model.FieldObservation{Name: key, Null: true})
		default:
			if err := d.Skip(); err != nil {
				return err
			}
			fields = append(fields, model.FieldObservation{Name: key, Type: model.ColumnTypeText})
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return fields, nil
}

// numberType classifies a JSON number literal: any fraction or exponent
// marker makes it REAL, otherwise INTEGER.
func numberType(num jx.Num) model.ColumnType {
	for _, c := range num {
		if c == '.' || c == 'e' || c == 'E' {
			return model.ColumnTypeReal
		}
	}
	return model.ColumnTypeInteger
}

// rowFromJSON projects one JSON object line onto the schema's column
// order. Missing keys and nulls render empty; keys the schema does not
// know yet are dropped until refinement publishes them. Scalars render as
// their literal form, nested values as raw JSON.
func rowFromJSON(line []byte, s *model.Schema) []string {
	row := make([]string, s.ColumnCount())
	d := jx.DecodeBytes(line)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		i, ok := s.ColumnIndex(key)
		if !ok {
			return d.Skip()
		}
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			if err != nil {
				return err
			}
			row[i] = v
		case jx.Null:
			if err := d.Null(); err != nil {
				return err
			}
			row[i] = ""
		default:
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			row[i] = string(raw)
		}
		return nil
	})
	return row
}
