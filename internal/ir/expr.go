package ir

// Expr is an IR expression. Every node carries its location and inferred
// result type through the embedded Meta.
type Expr interface {
	isExpr()
	Pos() Loc
	ResultType() Type
}

// Meta holds the fields shared by all expression nodes.
type Meta struct {
	Loc Loc
	T   Type
}

func (m Meta) Pos() Loc { return m.Loc }

func (m Meta) ResultType() Type { return m.T }

// Sym reads a parameter, local or captured constant.
type Sym struct {
	Meta
	Name string
}

// Literal is a scalar constant. Value holds the decimal text of the number
// ("true"/"false" for bools); the element type is in T.
type Literal struct {
	Meta
	Value string
}

// Unary applies an elementwise unary operator ("neg", "not", "sqrt", ...).
type Unary struct {
	Meta
	Op string
	X  Expr
}

// Binary applies an elementwise binary operator ("add", "lt", "and", ...).
type Binary struct {
	Meta
	Op string
	X  Expr
	Y  Expr
}

// Logical is a short-circuiting "and"/"or" over scalar bools.
type Logical struct {
	Meta
	Op string
	X  Expr
	Y  Expr
}

// Call invokes a built-in (neighbor_sum, where, broadcast, ...).
type Call struct {
	Meta
	Name string
	Args []Expr
}

// OpCall invokes a nested operator listed in Program.Deps.
type OpCall struct {
	Meta
	Op   string
	Args []Expr
}

// Remap is the indexed transform X(Offset) or, with Index >= 0, the single
// neighbor X(Offset, Index). Index is 0-based; -1 selects the whole row.
type Remap struct {
	Meta
	X      Expr
	Offset string
	Index  int
}

// DimRef names a dimension as a built-in argument (a reduction axis or a
// broadcast target).
type DimRef struct {
	Meta
	Dim Dim
}

// Convert casts X to DType.
type Convert struct {
	Meta
	X     Expr
	DType string
}

// MakeTuple builds a tuple value.
type MakeTuple struct {
	Meta
	Elems []Expr
}

// TupleGet selects element Index (0-based) of a tuple value.
type TupleGet struct {
	Meta
	X     Expr
	Index int
}

// Cond selects Then or Else by a scalar bool. Only the chosen branch is
// evaluated.
type Cond struct {
	Meta
	Cond Expr
	Then Expr
	Else Expr
}

func (*Sym) isExpr()       {}
func (*Literal) isExpr()   {}
func (*Unary) isExpr()     {}
func (*Binary) isExpr()    {}
func (*Logical) isExpr()   {}
func (*Call) isExpr()      {}
func (*OpCall) isExpr()    {}
func (*Remap) isExpr()     {}
func (*DimRef) isExpr()    {}
func (*Convert) isExpr()   {}
func (*MakeTuple) isExpr() {}
func (*TupleGet) isExpr()  {}
func (*Cond) isExpr()      {}
