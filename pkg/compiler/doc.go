// Package compiler translates a subset of COBOL into CIL assembly text
// for ilasm.
//
// Pipeline: COBOL source → Preprocess (COPY) → Lex → Parse → Analyze → Generate → ilasm text
package compiler
