package tablens

import (
	"bytes"
	"errors"

	"github.com/nao1215/tablens/domain/model"
)

// errNoLTSVFields marks a line with no label:value pair at all, which the
// scanners skip as unparsable.
var errNoLTSVFields = errors.New("no label:value pairs")

// LTSVScanner infers schemas from LTSV content: tab-separated label:value
// pairs, one record per line. Labels become columns in first-seen order,
// exactly like JSON Lines keys.
type LTSVScanner struct {
	keyedScanner
}

// NewLTSVScanner creates a scanner reading from the start of the mapping.
func NewLTSVScanner(m *MappedFile) *LTSVScanner {
	return &LTSVScanner{keyedScanner{
		lr:     NewLineReader(m),
		decode: decodeLTSVFields,
	}}
}

// NewLTSVScannerAt creates a scanner resuming at a byte offset.
func NewLTSVScannerAt(m *MappedFile, offset int64) *LTSVScanner {
	s := NewLTSVScanner(m)
	if offset > 0 {
		s.off = offset
	}
	return s
}

// decodeLTSVFields decodes one LTSV line into field observations. Pairs
// without a colon or with an empty label are dropped; an empty value
// observes as null.
func decodeLTSVFields(line []byte) ([]model.FieldObservation, error) {
	var fields []model.FieldObservation
	for _, pair := range bytes.Split(line, []byte{'\t'}) {
		label, value, ok := bytes.Cut(pair, []byte{':'})
		if !ok || len(label) == 0 {
			continue
		}
		obs := model.FieldObservation{Name: string(label)}
		if len(value) == 0 {
			obs.Null = true
		} else {
			obs.Type = model.ClassifyValue(string(value))
		}
		fields = append(fields, obs)
	}
	if len(fields) == 0 {
		return nil, errNoLTSVFields
	}
	return fields, nil
}

// rowFromLTSV projects one LTSV line onto the schema's column order.
// Missing labels render empty; labels the schema does not know yet are
// dropped until refinement publishes them.
func rowFromLTSV(line []byte, s *model.Schema) []string {
	row := make([]string, s.ColumnCount())
	for _, pair := range bytes.Split(line, []byte{'\t'}) {
		label, value, ok := bytes.Cut(pair, []byte{':'})
		if !ok || len(label) == 0 {
			continue
		}
		if i, ok := s.ColumnIndex(string(label)); ok {
			row[i] = string(value)
		}
	}
	return row
}
