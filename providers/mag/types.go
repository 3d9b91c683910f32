package mag

import (
	"encoding/json"
	"fmt"
)

// EvaluateResponse ist die Antwort des Evaluate-Endpunkts.
type EvaluateResponse struct {
	Expr     string   `json:"expr"`
	Entities []Entity `json:"entities"`
}

// Entity ist ein Eintrag aus der "entities"-Liste. Die Felder folgen den Kurzschlüsseln der MAG-API.
type Entity struct {
	ID               int64             `json:"Id"`
	LogProb          *float64          `json:"logprob,omitempty"`
	Prob             *float64          `json:"prob,omitempty"`
	Title            string            `json:"Ti,omitempty"`
	PublicationType  string            `json:"Pt,omitempty"`
	Year             int               `json:"Y,omitempty"`
	Date             string            `json:"D,omitempty"`
	CitationCount    int               `json:"CC,omitempty"`
	References       []int64           `json:"RId,omitempty"`
	DOI              string            `json:"DOI,omitempty"`
	Publisher        string            `json:"PB,omitempty"`
	BibtexDocType    string            `json:"BT,omitempty"`
	InvertedAbstract *InvertedAbstract `json:"IA,omitempty"`
	Journal          *Venue            `json:"J,omitempty"`
	Conference       *Venue            `json:"C,omitempty"`
	Authors          []AuthorEntry     `json:"AA,omitempty"`
	Fields           []FieldEntry      `json:"F,omitempty"`
	Level            *int              `json:"FL,omitempty"`

	// Raw enthält das unveränderte JSON, damit Seiten verlustfrei gespeichert werden können.
	Raw     json.RawMessage `json:"-"`
	present map[string]struct{}
}

// Venue deckt sowohl "J" (JN, JId) als auch "C" (CN, CId) ab.
type Venue struct {
	JournalID      int64  `json:"JId,omitempty"`
	JournalName    string `json:"JN,omitempty"`
	ConferenceID   int64  `json:"CId,omitempty"`
	ConferenceName string `json:"CN,omitempty"`
}

// AuthorEntry ist ein Eintrag der "AA"-Liste. AfId kann fehlen oder null sein.
type AuthorEntry struct {
	AuthorID        int64  `json:"AuId"`
	Name            string `json:"AuN,omitempty"`
	DisplayName     string `json:"DAuN,omitempty"`
	AffiliationID   *int64 `json:"AfId"`
	AffiliationName string `json:"AfN,omitempty"`
	DisplayAffName  string `json:"DAfN,omitempty"`
	Sequence        int    `json:"S,omitempty"`
}

// FieldEntry ist ein Eintrag der "F"-Liste.
type FieldEntry struct {
	ID          int64  `json:"FId"`
	Name        string `json:"FN"`
	DisplayName string `json:"DFN,omitempty"`
}

// InvertedAbstract ist der invertierte Index des Abstracts.
type InvertedAbstract struct {
	IndexLength   int              `json:"IndexLength"`
	InvertedIndex map[string][]int `json:"InvertedIndex"`
}

// UnmarshalJSON akzeptiert das Objekt direkt oder als JSON-kodierten String.
func (a *InvertedAbstract) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	type plain InvertedAbstract
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invertierter Abstract: %w", err)
	}
	*a = InvertedAbstract(p)
	return nil
}

// UnmarshalJSON merkt sich zusätzlich, welche Schlüssel im Payload vorhanden waren.
func (e *Entity) UnmarshalJSON(data []byte) error {
	type plain Entity
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*e = Entity(p)
	e.present = make(map[string]struct{}, len(keys))
	for k := range keys {
		e.present[k] = struct{}{}
	}
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON schreibt das Original-JSON zurück, falls vorhanden.
func (e Entity) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	type plain Entity
	return json.Marshal(plain(e))
}

// Has meldet, ob der Schlüssel im Payload vorkam, unabhängig von seinem Wert.
func (e *Entity) Has(key string) bool {
	_, ok := e.present[key]
	return ok
}
