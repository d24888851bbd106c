package mil

import (
	"strings"

	"github.com/pearProgrammr/mil-tools/internal/types"
)

// Program owns the ordered definition list and the constructor
// environment. Every pass iterates the list in the dependency order
// established by SortDefns, so results are deterministic.
type Program struct {
	Defns []Defn
	TEnv  *types.TyconEnv
}

// SortDefns reorders the definitions leaves-first: every definition
// follows the definitions it depends on, up to cycles. Members of a
// cycle come out in depth-first finishing order, so the member reached
// first follows the others it reaches. Passes and lowering assume this
// order.
func (p *Program) SortDefns() {
	seen := make(map[Defn]bool, len(p.Defns))
	inProgress := make(map[Defn]bool)
	sorted := make([]Defn, 0, len(p.Defns))

	var visit func(d Defn)
	visit = func(d Defn) {
		if seen[d] || inProgress[d] {
			return
		}
		inProgress[d] = true
		for _, dep := range d.Deps() {
			visit(dep)
		}
		inProgress[d] = false
		seen[d] = true
		sorted = append(sorted, d)
	}
	for _, d := range p.Defns {
		visit(d)
	}
	p.Defns = sorted
}

// LiveDefns returns the definitions reachable from roots, leaves
// first. The optimiser marks a definition unreachable simply by not
// including it here; nothing is deleted in place.
func (p *Program) LiveDefns(roots []Defn) []Defn {
	seen := make(map[Defn]bool)
	var live []Defn
	var visit func(d Defn)
	visit = func(d Defn) {
		if seen[d] {
			return
		}
		seen[d] = true
		for _, dep := range d.Deps() {
			visit(dep)
		}
		live = append(live, d)
	}
	for _, r := range roots {
		visit(r)
	}
	return live
}

// FindDefn looks a definition up by id.
func (p *Program) FindDefn(id string) Defn {
	for _, d := range p.Defns {
		if d.DefnId() == id {
			return d
		}
		if tl, ok := d.(*TopLevel); ok {
			for _, lhs := range tl.Lhs {
				if lhs == id {
					return d
				}
			}
		}
	}
	return nil
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, d := range p.Defns {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
