package models

import "fmt"

// publicationTypes bildet MAG "Pt"-Codes auf Kategorien ab. "0" steht für "unbekannt" und wird zu NULL.
var publicationTypes = map[string]string{
	"1": "Journal article",
	"2": "Patent",
	"3": "Conference paper",
	"4": "Book chapter",
	"5": "Book",
	"6": "Book reference entry",
	"7": "Dataset",
	"8": "Repository",
}

var bibtexDocTypes = map[string]string{
	"a": "Journal article",
	"b": "Book",
	"c": "Book chapter",
	"p": "Conference paper",
}

// UnknownCodeError wird zurückgegeben, wenn ein Code in keiner Lookup-Tabelle steht.
type UnknownCodeError struct {
	Table string
	Code  string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown %s code %q", e.Table, e.Code)
}

// PublicationType übersetzt einen Pt-Code. Leerer Code und "0" ergeben nil.
func PublicationType(code string) (*string, error) {
	if code == "" || code == "0" {
		return nil, nil
	}
	name, ok := publicationTypes[code]
	if !ok {
		return nil, &UnknownCodeError{Table: "publication type", Code: code}
	}
	return &name, nil
}

// BibtexDocType übersetzt einen BT-Code. Ein fehlender Code ergibt nil.
func BibtexDocType(code string) (*string, error) {
	if code == "" {
		return nil, nil
	}
	name, ok := bibtexDocTypes[code]
	if !ok {
		return nil, &UnknownCodeError{Table: "bibtex doc type", Code: code}
	}
	return &name, nil
}

// All listet alle Tabellen für die Migration.
func All() []any {
	return []any{
		&Paper{}, &Journal{}, &Conference{}, &Author{}, &PaperAuthor{},
		&Affiliation{}, &AuthorAffiliation{}, &FieldOfStudy{}, &PaperFieldsOfStudy{},
		&FosMetadata{}, &CoreControlGroup{}, &AffiliationLocation{}, &OpenAccess{},
		&AffiliationType{}, &PaperLink{},
	}
}
