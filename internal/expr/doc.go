// Package expr implements the restricted expression language used by rule
// conditions, value expressions, and assignment templates.
//
// Expressions are parsed into an AST and interpreted against an explicit
// read-only scope (the current record plus an allow-listed function set).
// Nothing is ever compiled to host code and no expression can perform I/O,
// which removes the injection and sandbox-escape risk of evaluating rule
// text as a program.
//
// Grammar (precedence low to high):
//
//	or     := and ("||" and)*
//	and    := cmp ("&&" cmp)*
//	cmp    := sum (("=="|"!="|"<"|"<="|">"|">=") sum)?
//	sum    := term (("+"|"-") term)*
//	term   := unary (("*"|"/"|"%") unary)*
//	unary  := ("-"|"!") unary | primary
//	primary:= number | string | "true" | "false" | "null"
//	       | ident ("." ident)* | ident "(" args ")" | "(" or ")"
//
// Bare identifiers are dotted field references resolved against the record;
// a missing field resolves to null, not an error. Unknown functions and
// malformed syntax are errors, reported to the caller and never panics.
package expr
