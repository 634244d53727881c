package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // data name, paragraph name, picture string
	NUMBER     // unsigned decimal literal, optionally with a fraction
	TEXT       // quoted literal; the lexeme holds the value without quotes

	// Symbols
	LPAREN     // (
	RPAREN     // )
	DOT        // .
	COLON      // :
	PLUS       // +
	MINUS      // -
	STAR       // *
	SLASH      // /
	POW        // **
	EQUALS     // =
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
	NOT_EQ     // <>

	keywordStart

	// Divisions and sections
	IDENTIFICATION
	PROGRAM_ID
	AUTHOR
	ENVIRONMENT
	CONFIGURATION
	SOURCE_COMPUTER
	OBJECT_COMPUTER
	REPOSITORY
	ATTRIBUTES
	INPUT_OUTPUT
	FILE_CONTROL
	I_O_CONTROL
	DATA
	WORKING_STORAGE
	FILE
	FD
	SD
	PROCEDURE
	DIVISION
	SECTION
	PROGRAM
	END

	// Data description
	PICTURE
	VALUE
	OCCURS
	TIMES
	REDEFINES
	FILLER
	COMPUTATIONAL
	BINARY
	OBJECT
	REFERENCE
	CLASS
	AS
	SPACES
	ZEROS
	QUOTES
	HIGH_VALUES
	LOW_VALUES
	TRUE
	FALSE

	// Verbs
	DISPLAY
	ACCEPT
	STRING
	PERFORM
	IF
	MOVE
	ADD
	SUBTRACT
	MULTIPLY
	DIVIDE
	SET
	INVOKE
	EXIT
	STOP
	OPEN
	CLOSE
	READ
	WRITE

	// Phrases
	NO
	ADVANCING
	DELIMITED
	BY
	INTO
	WITH
	POINTER
	UNTIL
	VARYING
	FROM
	THRU
	THEN
	ELSE
	END_IF
	END_PERFORM
	END_STRING
	CORRESPONDING
	TO
	GIVING
	ROUNDED
	REMAINDER
	ON
	SIZE
	ERROR
	END_ADD
	END_SUBTRACT
	END_MULTIPLY
	END_DIVIDE
	USING
	RETURNING
	RUN
	INPUT
	OUTPUT
	I_O
	EXTEND
	LOCK
	NEXT
	RECORD
	AT
	NOT
	INVALID
	END_READ
	END_WRITE
	SELECT
	OPTIONAL
	ASSIGN
	ORGANIZATION
	IS
	LINE
	SEQUENTIAL
	FUNCTION
	UPPER_CASE
	AND
	OR
	ARE
	KEY
	ALL
	ID
	STATIC
	LINES
	PAGE
	AFTER
	BEFORE

	keywordEnd
)

// tokenNames is indexed by TokenType. Keyword entries hold the reserved
// word exactly as it is spelled in source.
var tokenNames = [...]string{
	EOF:        "EOF",
	IDENTIFIER: "IDENTIFIER",
	NUMBER:     "NUMBER",
	TEXT:       "TEXT",

	LPAREN:     "(",
	RPAREN:     ")",
	DOT:        ".",
	COLON:      ":",
	PLUS:       "+",
	MINUS:      "-",
	STAR:       "*",
	SLASH:      "/",
	POW:        "**",
	EQUALS:     "=",
	LESS:       "<",
	GREATER:    ">",
	LESS_EQ:    "<=",
	GREATER_EQ: ">=",
	NOT_EQ:     "<>",

	keywordStart: "",

	IDENTIFICATION:  "IDENTIFICATION",
	PROGRAM_ID:      "PROGRAM-ID",
	AUTHOR:          "AUTHOR",
	ENVIRONMENT:     "ENVIRONMENT",
	CONFIGURATION:   "CONFIGURATION",
	SOURCE_COMPUTER: "SOURCE-COMPUTER",
	OBJECT_COMPUTER: "OBJECT-COMPUTER",
	REPOSITORY:      "REPOSITORY",
	ATTRIBUTES:      "ATTRIBUTES",
	INPUT_OUTPUT:    "INPUT-OUTPUT",
	FILE_CONTROL:    "FILE-CONTROL",
	I_O_CONTROL:     "I-O-CONTROL",
	DATA:            "DATA",
	WORKING_STORAGE: "WORKING-STORAGE",
	FILE:            "FILE",
	FD:              "FD",
	SD:              "SD",
	PROCEDURE:       "PROCEDURE",
	DIVISION:        "DIVISION",
	SECTION:         "SECTION",
	PROGRAM:         "PROGRAM",
	END:             "END",

	PICTURE:       "PICTURE",
	VALUE:         "VALUE",
	OCCURS:        "OCCURS",
	TIMES:         "TIMES",
	REDEFINES:     "REDEFINES",
	FILLER:        "FILLER",
	COMPUTATIONAL: "COMPUTATIONAL",
	BINARY:        "BINARY",
	OBJECT:        "OBJECT",
	REFERENCE:     "REFERENCE",
	CLASS:         "CLASS",
	AS:            "AS",
	SPACES:        "SPACES",
	ZEROS:         "ZEROS",
	QUOTES:        "QUOTES",
	HIGH_VALUES:   "HIGH-VALUES",
	LOW_VALUES:    "LOW-VALUES",
	TRUE:          "TRUE",
	FALSE:         "FALSE",

	DISPLAY:  "DISPLAY",
	ACCEPT:   "ACCEPT",
	STRING:   "STRING",
	PERFORM:  "PERFORM",
	IF:       "IF",
	MOVE:     "MOVE",
	ADD:      "ADD",
	SUBTRACT: "SUBTRACT",
	MULTIPLY: "MULTIPLY",
	DIVIDE:   "DIVIDE",
	SET:      "SET",
	INVOKE:   "INVOKE",
	EXIT:     "EXIT",
	STOP:     "STOP",
	OPEN:     "OPEN",
	CLOSE:    "CLOSE",
	READ:     "READ",
	WRITE:    "WRITE",

	NO:            "NO",
	ADVANCING:     "ADVANCING",
	DELIMITED:     "DELIMITED",
	BY:            "BY",
	INTO:          "INTO",
	WITH:          "WITH",
	POINTER:       "POINTER",
	UNTIL:         "UNTIL",
	VARYING:       "VARYING",
	FROM:          "FROM",
	THRU:          "THRU",
	THEN:          "THEN",
	ELSE:          "ELSE",
	END_IF:        "END-IF",
	END_PERFORM:   "END-PERFORM",
	END_STRING:    "END-STRING",
	CORRESPONDING: "CORRESPONDING",
	TO:            "TO",
	GIVING:        "GIVING",
	ROUNDED:       "ROUNDED",
	REMAINDER:     "REMAINDER",
	ON:            "ON",
	SIZE:          "SIZE",
	ERROR:         "ERROR",
	END_ADD:       "END-ADD",
	END_SUBTRACT:  "END-SUBTRACT",
	END_MULTIPLY:  "END-MULTIPLY",
	END_DIVIDE:    "END-DIVIDE",
	USING:         "USING",
	RETURNING:     "RETURNING",
	RUN:           "RUN",
	INPUT:         "INPUT",
	OUTPUT:        "OUTPUT",
	I_O:           "I-O",
	EXTEND:        "EXTEND",
	LOCK:          "LOCK",
	NEXT:          "NEXT",
	RECORD:        "RECORD",
	AT:            "AT",
	NOT:           "NOT",
	INVALID:       "INVALID",
	END_READ:      "END-READ",
	END_WRITE:     "END-WRITE",
	SELECT:        "SELECT",
	OPTIONAL:      "OPTIONAL",
	ASSIGN:        "ASSIGN",
	ORGANIZATION:  "ORGANIZATION",
	IS:            "IS",
	LINE:          "LINE",
	SEQUENTIAL:    "SEQUENTIAL",
	FUNCTION:      "FUNCTION",
	UPPER_CASE:    "UPPER-CASE",
	AND:           "AND",
	OR:            "OR",
	ARE:           "ARE",
	KEY:           "KEY",
	ALL:           "ALL",
	ID:            "ID",
	STATIC:        "STATIC",
	LINES:         "LINES",
	PAGE:          "PAGE",
	AFTER:         "AFTER",
	BEFORE:        "BEFORE",

	keywordEnd: "",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) && tokenNames[tt] != "" {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// IsKeyword reports whether tt is a reserved word.
func (tt TokenType) IsKeyword() bool {
	return tt > keywordStart && tt < keywordEnd
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // source spelling; TEXT tokens hold the unquoted value
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-15s %-20q  line %d", t.Type, t.Lexeme, t.Line)
}
