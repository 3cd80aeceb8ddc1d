// ast.go — the Buddy Script AST node set.
//
// Pure data, no behavior. Each node records the 1-based source line of its
// first token for diagnostics. The tree is exclusively owned: every node
// owns its children, no sharing, no cycles.
package buddyscript

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	Pos() int // 1-based source line
}

// Expr is the interface for all expression nodes.
type Expr interface {
	Node
	exprNode() // sealed marker
}

// Stmt is the interface for all statement nodes.
type Stmt interface {
	Node
	stmtNode() // sealed marker
}

// Program is the parse root: an ordered statement list.
type Program struct {
	Line  int
	Stmts []Stmt
}

func (n *Program) Kind() string { return "Program" }
func (n *Program) Pos() int     { return n.Line }

// Param is one declared function/lambda parameter. Default is nil when the
// parameter has no default expression; TypeAnnot is the raw annotation text
// ("" when absent) and carries no checking semantics.
type Param struct {
	Name      string
	Default   Expr
	TypeAnnot string
}

// --- Statements ---

// FunctionDecl declares a named function. Async functions wrap their result
// in a future that `await` unwraps.
type FunctionDecl struct {
	Line   int
	Name   string
	Params []Param
	Body   *Block
	Async  bool
}

func (n *FunctionDecl) Kind() string { return "FunctionDecl" }
func (n *FunctionDecl) Pos() int     { return n.Line }
func (n *FunctionDecl) stmtNode()    {}

// ClassDecl carries an optional base-class name and an ordered member list
// of methods and field initializers. No further OOP semantics are implied.
type ClassDecl struct {
	Line    int
	Name    string
	Base    string // "" when the class has no base
	Methods []*FunctionDecl
	Fields  []*VarDecl
}

func (n *ClassDecl) Kind() string { return "ClassDecl" }
func (n *ClassDecl) Pos() int     { return n.Line }
func (n *ClassDecl) stmtNode()    {}

// DeclKind distinguishes let/const/var bindings.
type DeclKind int

const (
	DeclLet DeclKind = iota
	DeclConst
	DeclVar
)

// VarDecl binds a name in the current scope. Init may be nil (binds null).
type VarDecl struct {
	Line int
	Decl DeclKind
	Name string
	Init Expr
}

func (n *VarDecl) Kind() string { return "VarDecl" }
func (n *VarDecl) Pos() int     { return n.Line }
func (n *VarDecl) stmtNode()    {}

type If struct {
	Line int
	Cond Expr
	Then *Block
	Else Stmt // *Block, *If (else-if chain), or nil
}

func (n *If) Kind() string { return "If" }
func (n *If) Pos() int     { return n.Line }
func (n *If) stmtNode()    {}

type While struct {
	Line int
	Cond Expr
	Body *Block
}

func (n *While) Kind() string { return "While" }
func (n *While) Pos() int     { return n.Line }
func (n *While) stmtNode()    {}

// For is the for-in form: `for x in expr { ... }`.
type For struct {
	Line int
	Name string
	Iter Expr
	Body *Block
}

func (n *For) Kind() string { return "For" }
func (n *For) Pos() int     { return n.Line }
func (n *For) stmtNode()    {}

// ForCStyle is `for (init; cond; post) { ... }`. Any of the three header
// slots may be nil.
type ForCStyle struct {
	Line int
	Init Stmt
	Cond Expr
	Post Stmt
	Body *Block
}

func (n *ForCStyle) Kind() string { return "ForCStyle" }
func (n *ForCStyle) Pos() int     { return n.Line }
func (n *ForCStyle) stmtNode()    {}

// Return's Value is nil for a bare `return`.
type Return struct {
	Line  int
	Value Expr
}

func (n *Return) Kind() string { return "Return" }
func (n *Return) Pos() int     { return n.Line }
func (n *Return) stmtNode()    {}

type Break struct{ Line int }

func (n *Break) Kind() string { return "Break" }
func (n *Break) Pos() int     { return n.Line }
func (n *Break) stmtNode()    {}

type Continue struct{ Line int }

func (n *Continue) Kind() string { return "Continue" }
func (n *Continue) Pos() int     { return n.Line }
func (n *Continue) stmtNode()    {}

// CatchClause matches a thrown value. TypeFilter "" matches everything;
// otherwise it must equal the thrown value's type tag.
type CatchClause struct {
	Line       int
	Binding    string
	TypeFilter string
	Body       *Block
}

// Try runs Body; thrown values are tested against Catches in declaration
// order. Finally (may be nil) runs exactly once on every exit path.
type Try struct {
	Line    int
	Body    *Block
	Catches []*CatchClause
	Finally *Block
}

func (n *Try) Kind() string { return "Try" }
func (n *Try) Pos() int     { return n.Line }
func (n *Try) stmtNode()    {}

type Throw struct {
	Line  int
	Value Expr
}

func (n *Throw) Kind() string { return "Throw" }
func (n *Throw) Pos() int     { return n.Line }
func (n *Throw) stmtNode()    {}

// Import loads a module. Two source forms:
//
//	import name from "path"
//	import "path" as name
type Import struct {
	Line int
	Name string
	Path string
}

func (n *Import) Kind() string { return "Import" }
func (n *Import) Pos() int     { return n.Line }
func (n *Import) stmtNode()    {}

// Export marks a declaration as part of the module's export map.
type Export struct {
	Line int
	Decl Stmt // *VarDecl, *FunctionDecl, or *ClassDecl
}

func (n *Export) Kind() string { return "Export" }
func (n *Export) Pos() int     { return n.Line }
func (n *Export) stmtNode()    {}

// TestDecl is a named test block: `test "name" { ... }`.
type TestDecl struct {
	Line int
	Name string
	Body *Block
}

func (n *TestDecl) Kind() string { return "TestDecl" }
func (n *TestDecl) Pos() int     { return n.Line }
func (n *TestDecl) stmtNode()    {}

// Assert raises a runtime error when Cond is falsy. Message may be nil.
type Assert struct {
	Line    int
	Cond    Expr
	Message Expr
}

func (n *Assert) Kind() string { return "Assert" }
func (n *Assert) Pos() int     { return n.Line }
func (n *Assert) stmtNode()    {}

type Block struct {
	Line  int
	Stmts []Stmt
}

func (n *Block) Kind() string { return "Block" }
func (n *Block) Pos() int     { return n.Line }
func (n *Block) stmtNode()    {}

type ExpressionStmt struct {
	Line int
	X    Expr
}

func (n *ExpressionStmt) Kind() string { return "ExpressionStmt" }
func (n *ExpressionStmt) Pos() int     { return n.Line }
func (n *ExpressionStmt) stmtNode()    {}

// --- Expressions ---

// Literal carries a normalized runtime Value: numbers are always float64,
// matching the evaluator's numeric semantics.
type Literal struct {
	Line  int
	Value Value
}

func (n *Literal) Kind() string { return "Literal" }
func (n *Literal) Pos() int     { return n.Line }
func (n *Literal) exprNode()    {}

type Identifier struct {
	Line int
	Name string
}

func (n *Identifier) Kind() string { return "Identifier" }
func (n *Identifier) Pos() int     { return n.Line }
func (n *Identifier) exprNode()    {}

type Binary struct {
	Line  int
	Op    string // "+" "-" "*" "/" "%" "**" "==" "!=" "<" "<=" ">" ">=" "&&" "||"
	Left  Expr
	Right Expr
}

func (n *Binary) Kind() string { return "Binary" }
func (n *Binary) Pos() int     { return n.Line }
func (n *Binary) exprNode()    {}

type Unary struct {
	Line    int
	Op      string // "!" or "-"
	Operand Expr
}

func (n *Unary) Kind() string { return "Unary" }
func (n *Unary) Pos() int     { return n.Line }
func (n *Unary) exprNode()    {}

// Assignment covers "=" and the compound forms; Op is the full operator
// text ("=", "+=", "-=", "*=", "/="). Target must be an Identifier, Member,
// or Index node; the parser rejects anything else.
type Assignment struct {
	Line   int
	Op     string
	Target Expr
	Value  Expr
}

func (n *Assignment) Kind() string { return "Assignment" }
func (n *Assignment) Pos() int     { return n.Line }
func (n *Assignment) exprNode()    {}

// NamedArg is a `name: value` call argument, kept apart from positionals.
type NamedArg struct {
	Name  string
	Value Expr
}

type Call struct {
	Line   int
	Callee Expr
	Args   []Expr
	Named  []NamedArg
}

func (n *Call) Kind() string { return "Call" }
func (n *Call) Pos() int     { return n.Line }
func (n *Call) exprNode()    {}

// Member is `obj.name`.
type Member struct {
	Line int
	Obj  Expr
	Name string
}

func (n *Member) Kind() string { return "Member" }
func (n *Member) Pos() int     { return n.Line }
func (n *Member) exprNode()    {}

// Index is `obj[expr]`.
type Index struct {
	Line  int
	Obj   Expr
	Index Expr
}

func (n *Index) Kind() string { return "Index" }
func (n *Index) Pos() int     { return n.Line }
func (n *Index) exprNode()    {}

type Array struct {
	Line     int
	Elements []Expr
}

func (n *Array) Kind() string { return "Array" }
func (n *Array) Pos() int     { return n.Line }
func (n *Array) exprNode()    {}

// DictEntry preserves source order of object-literal pairs.
type DictEntry struct {
	Key   string
	Value Expr
}

type Dict struct {
	Line    int
	Entries []DictEntry
}

func (n *Dict) Kind() string { return "Dict" }
func (n *Dict) Pos() int     { return n.Line }
func (n *Dict) exprNode()    {}

// Lambda is an arrow function. Body is an expression for `x => x + 1`, or a
// Block for `x => { ... }` (exactly one of Body/BlockBody is set).
type Lambda struct {
	Line      int
	Params    []Param
	Body      Expr
	BlockBody *Block
	Async     bool
}

func (n *Lambda) Kind() string { return "Lambda" }
func (n *Lambda) Pos() int     { return n.Line }
func (n *Lambda) exprNode()    {}

// Interpolation is a `"a${expr}b"` literal split into ordered parts, each a
// *Literal string or an arbitrary sub-expression.
type Interpolation struct {
	Line  int
	Parts []Expr
}

func (n *Interpolation) Kind() string { return "Interpolation" }
func (n *Interpolation) Pos() int     { return n.Line }
func (n *Interpolation) exprNode()    {}

type Ternary struct {
	Line int
	Cond Expr
	Then Expr
	Else Expr
}

func (n *Ternary) Kind() string { return "Ternary" }
func (n *Ternary) Pos() int     { return n.Line }
func (n *Ternary) exprNode()    {}

type Await struct {
	Line    int
	Operand Expr
}

func (n *Await) Kind() string { return "Await" }
func (n *Await) Pos() int     { return n.Line }
func (n *Await) exprNode()    {}
