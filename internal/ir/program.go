package ir

// Stmt is an IR statement: Assign, If or Return.
type Stmt interface {
	isStmt()
	Pos() Loc
}

// Assign binds Name to the value of Value.
type Assign struct {
	Loc   Loc
	Name  string
	Value Expr
}

// If runs Then when Cond (a scalar bool) holds, Else otherwise.
type If struct {
	Loc  Loc
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// Return ends the program with Value.
type Return struct {
	Loc   Loc
	Value Expr
}

func (*Assign) isStmt() {}
func (*If) isStmt()     {}
func (*Return) isStmt() {}

func (s *Assign) Pos() Loc { return s.Loc }
func (s *If) Pos() Loc     { return s.Loc }
func (s *Return) Pos() Loc { return s.Loc }

// Param is a positional operator parameter.
type Param struct {
	Name string
	T    Type
}

// OffsetDecl records an offset the program remaps through. The connectivity
// is bound by Name when the kernel is invoked.
type OffsetDecl struct {
	Name    string
	Source  Dim
	Targets []Dim
}

// Program is a translated field operator.
//
// Deps holds the nested operators the body calls, keyed by the name OpCall
// uses. Offsets lists every offset referenced by the body or any dep.
type Program struct {
	Name    string
	Params  []Param
	Result  Type
	Body    []Stmt
	Offsets []OffsetDecl
	Deps    map[string]*Program
}

// Offset returns the declaration for name.
func (p *Program) Offset(name string) (OffsetDecl, bool) {
	for _, o := range p.Offsets {
		if o.Name == name {
			return o, true
		}
	}
	return OffsetDecl{}, false
}
