package belief

import (
	"fmt"

	"bdicore/internal/query"
	"bdicore/internal/term"
)

// ParseProgram reads facts `head.` and clauses `head :- body.`. A fact that
// is not ground is returned as a clause with a true body.
func ParseProgram(src string) ([]term.Term, []Clause, error) {
	p, err := term.NewParser(src)
	if err != nil {
		return nil, nil, err
	}

	var facts []term.Term
	var clauses []Clause
	for !p.AtEOF() {
		head, err := p.ParseTerm()
		if err != nil {
			return nil, nil, err
		}
		if _, _, ok := term.Functor(head); !ok {
			return nil, nil, fmt.Errorf("clause head must be an atom or compound: %s", head)
		}
		var body query.Query = query.True{}
		if p.Accept(":-") {
			if body, err = query.ParseFrom(p); err != nil {
				return nil, nil, err
			}
		}
		if err := p.Expect("."); err != nil {
			return nil, nil, err
		}

		_, isTrue := body.(query.True)
		if isTrue && term.Ground(head) {
			facts = append(facts, head)
			continue
		}
		clauses = append(clauses, Clause{Head: head, Body: body})
	}
	return facts, clauses, nil
}
