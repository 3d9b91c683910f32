package services

import "ci-mapping/models"

// FosSet ist eine Menge normalisierter Field-of-Study-Namen.
type FosSet map[string]struct{}

// NewFosSet baut eine FosSet aus einer Liste.
func NewFosSet(names ...string) FosSet {
	s := make(FosSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Intersects meldet, ob mindestens ein Name in der Menge liegt.
func (s FosSet) Intersects(names []string) bool {
	for _, n := range names {
		if _, ok := s[n]; ok {
			return true
		}
	}
	return false
}

// Classifier ordnet einem Paper anhand seiner Fields of Study genau ein Label zu.
type Classifier interface {
	Label(fos []string) string
}

// Classify gibt in zurück, wenn sich fos und reference überschneiden, sonst out.
func Classify(fos []string, reference FosSet, in, out string) string {
	if reference.Intersects(fos) {
		return in
	}
	return out
}

// CoreControl ist die zweiwertige Einteilung in Kern- und Kontrollgruppe.
type CoreControl struct {
	Reference FosSet
	In        string
	Out       string
}

func (c CoreControl) Label(fos []string) string {
	return Classify(fos, c.Reference, c.In, c.Out)
}

// GroupLabels legt die Labels der dreiwertigen Einteilung fest.
type GroupLabels struct {
	A       string
	B       string
	Both    string
	Neither string
}

// DefaultGroupLabels: A = CI, B = AI. Papers ohne Treffer landen in der AI-Gruppe.
func DefaultGroupLabels() GroupLabels {
	return GroupLabels{
		A:       models.CohortCI,
		B:       models.CohortAI,
		Both:    models.CohortAICI,
		Neither: models.CohortAI,
	}
}

// CohortGroups teilt Papers anhand zweier Referenzmengen ein.
type CohortGroups struct {
	A      FosSet
	B      FosSet
	Labels GroupLabels
}

func (g CohortGroups) Label(fos []string) string {
	inA, inB := g.A.Intersects(fos), g.B.Intersects(fos)
	switch {
	case inA && inB:
		return g.Labels.Both
	case inA:
		return g.Labels.A
	case inB:
		return g.Labels.B
	default:
		return g.Labels.Neither
	}
}
