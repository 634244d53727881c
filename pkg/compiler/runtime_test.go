package compiler

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"cobolc/pkg/vm"
)

// execute compiles src and interprets the result, returning what the
// program displayed.
func execute(t *testing.T, src, input string, disk *vm.Disk) (string, error) {
	t.Helper()
	res := compileOK(t, src)
	var out bytes.Buffer
	opts := []vm.Option{
		vm.WithOutput(&out),
		vm.WithInput(strings.NewReader(input)),
		vm.WithMaxSteps(1000000),
	}
	if disk != nil {
		opts = append(opts, vm.WithDisk(disk))
	}
	err := vm.New(res.Module, opts...).Run()
	return out.String(), err
}

func TestRun_Programs(t *testing.T) {
	tests := []struct {
		name  string
		data  []string
		proc  []string
		input string
		want  string
	}{
		{
			name: "hello",
			proc: []string{"MAIN.", "    DISPLAY 'HELLO, WORLD'.", "    STOP RUN."},
			want: "HELLO, WORLD\n",
		},
		{
			name: "arithmetic",
			data: []string{
				"01 A PIC 9(2) VALUE 10.",
				"01 B PIC 9(2) VALUE 7.",
				"01 C PIC 9(2).",
				"01 R PIC 9.",
			},
			proc: []string{
				"MAIN.",
				"    ADD 5 TO A.",
				"    SUBTRACT B FROM A.",
				"    MULTIPLY 2 BY A.",
				"    DIVIDE A BY B GIVING C REMAINDER R.",
				"    DISPLAY '[' A '|' C '|' R ']'.",
				"    STOP RUN.",
			},
			want: "[16|2 |2]\n",
		},
		{
			name: "perform varying",
			data: []string{"01 I PIC 9."},
			proc: []string{
				"MAIN.",
				"    PERFORM VARYING I FROM 1 BY 1 UNTIL I > 3",
				"        DISPLAY I",
				"    END-PERFORM.",
				"    STOP RUN.",
			},
			want: "1\n2\n3\n",
		},
		{
			name: "perform thru",
			proc: []string{
				"MAIN.",
				"    PERFORM P1 THRU P2.",
				"    STOP RUN.",
				"P1.",
				"    DISPLAY 'P1'.",
				"P2.",
				"    DISPLAY 'P2'.",
			},
			want: "P1\nP2\n",
		},
		{
			name: "if else",
			data: []string{"01 N PIC 9(2) VALUE 42."},
			proc: []string{
				"MAIN.",
				"    IF N > 40 AND N < 50",
				"        DISPLAY 'FORTIES'",
				"    ELSE",
				"        DISPLAY 'OTHER'",
				"    END-IF.",
				"    IF N = 7 OR N = 8 DISPLAY 'NO' ELSE DISPLAY 'YES' END-IF.",
				"    STOP RUN.",
			},
			want: "FORTIES\nYES\n",
		},
		{
			name: "condition names",
			data: []string{"01 F PIC X VALUE 'Y'.", "   88 F-ON VALUE 'Y'."},
			proc: []string{
				"MAIN.",
				"    IF F-ON DISPLAY 'ON' END-IF.",
				"    SET F-ON TO FALSE.",
				"    IF NOT F-ON DISPLAY 'OFF' END-IF.",
				"    STOP RUN.",
			},
			want: "ON\nOFF\n",
		},
		{
			name: "condition name kept apart from its item",
			data: []string{"01 F PIC X VALUE 'Y'.", "   88 F-ON VALUE 'Y'."},
			proc: []string{
				"MAIN.",
				"    MOVE 'N' TO F.",
				"    IF F-ON DISPLAY 'STILL ON' END-IF.",
				"    STOP RUN.",
			},
			want: "STILL ON\n",
		},
		{
			name: "group value and group move",
			data: []string{
				"01 G VALUE 'AB12'.",
				"   05 GA PIC X(2).",
				"   05 GN PIC 9(2).",
				"01 H.",
				"   05 HA PIC X(2).",
				"   05 HN PIC 9(2).",
			},
			proc: []string{
				"MAIN.",
				"    DISPLAY GA '/' GN.",
				"    MOVE G TO H.",
				"    ADD 1 TO HN.",
				"    DISPLAY H.",
				"    STOP RUN.",
			},
			want: "AB/12\nAB13\n",
		},
		{
			name: "text into group",
			data: []string{
				"01 DATE-REC.",
				"   05 YY PIC 9(4).",
				"   05 MM PIC 9(2).",
			},
			proc: []string{
				"MAIN.",
				"    MOVE '202410' TO DATE-REC.",
				"    DISPLAY MM '.' YY.",
				"    STOP RUN.",
			},
			want: "10.2024\n",
		},
		{
			name: "figurative group value",
			data: []string{
				"01 G VALUE ZEROS.",
				"   05 GA PIC X(2).",
				"   05 GN PIC 9(2).",
			},
			proc: []string{
				"MAIN.",
				"    ADD 1 TO GN.",
				"    DISPLAY GA '/' GN.",
				"    STOP RUN.",
			},
			want: "00/1 \n",
		},
		{
			name: "tables",
			data: []string{"01 T.", "   05 E PIC 9 OCCURS 3.", "01 I PIC 9."},
			proc: []string{
				"MAIN.",
				"    PERFORM VARYING I FROM 1 BY 1 UNTIL I > 3",
				"        MOVE I TO E(I)",
				"    END-PERFORM.",
				"    DISPLAY E(1) '-' E(3).",
				"    STOP RUN.",
			},
			want: "1-3\n",
		},
		{
			name: "substring and upper case",
			data: []string{"01 NAME PIC X(10) VALUE 'johnson'."},
			proc: []string{
				"MAIN.",
				"    MOVE FUNCTION UPPER-CASE(NAME) TO NAME.",
				"    DISPLAY NAME(1:4).",
				"    DISPLAY '[' NAME ']'.",
				"    STOP RUN.",
			},
			want: "JOHN\n[JOHNSON   ]\n",
		},
		{
			name:  "accept",
			data:  []string{"01 NAME PIC X(5)."},
			proc:  []string{"MAIN.", "    ACCEPT NAME.", "    DISPLAY '[' NAME ']'.", "    STOP RUN."},
			input: "BOB\n",
			want:  "[BOB  ]\n",
		},
		{
			name: "string",
			data: []string{"01 S PIC X(6)."},
			proc: []string{
				"MAIN.",
				"    STRING 'AB' 'CD' DELIMITED BY SIZE INTO S.",
				"    DISPLAY '[' S ']'.",
				"    STOP RUN.",
			},
			want: "[ABCD  ]\n",
		},
		{
			name: "no advancing",
			proc: []string{
				"MAIN.",
				"    DISPLAY 'A' WITH NO ADVANCING.",
				"    DISPLAY 'B'.",
				"    STOP RUN.",
			},
			want: "AB\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, program(tt.data, tt.proc...), tt.input, nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got != tt.want {
				t.Errorf("output %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_Conditions(t *testing.T) {
	tests := []struct {
		name string
		vals [5]int // A B C D E
		cond string
		want string
	}{
		{"and both", [5]int{1, 1, 2, 2}, "A = B AND C = D", "Y"},
		{"and left false", [5]int{1, 0, 2, 2}, "A = B AND C = D", "N"},
		{"and right false", [5]int{1, 1, 2, 0}, "A = B AND C = D", "N"},
		{"and neither", [5]int{1, 0, 2, 0}, "A = B AND C = D", "N"},
		{"or both", [5]int{1, 1, 2, 2}, "A = B OR C = D", "Y"},
		{"or left only", [5]int{1, 1, 2, 0}, "A = B OR C = D", "Y"},
		{"or right only", [5]int{1, 0, 2, 2}, "A = B OR C = D", "Y"},
		{"or neither", [5]int{1, 0, 2, 0}, "A = B OR C = D", "N"},
		{"and chain", [5]int{4, 4, 4, 4}, "A = B AND B = C AND C = D", "Y"},
		{"and chain broken at the end", [5]int{4, 4, 4, 5}, "A = B AND B = C AND C = D", "N"},
		{"or chain", [5]int{0, 0, 0, 0, 9}, "A = 9 OR B = 9 OR E = 9", "Y"},
		{"equal", [5]int{3, 3}, "A = B", "Y"},
		{"not equal", [5]int{3, 4}, "A = B", "N"},
		// Combinations group from the left: (A OR B) AND C.
		{"mixed groups left to right", [5]int{1, 0, 0}, "A = 1 OR B = 1 AND C = 1", "N"},
		{"mixed all true on the right", [5]int{0, 1, 1}, "A = 1 OR B = 1 AND C = 1", "Y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data []string
			for i, v := range tt.vals {
				data = append(data, fmt.Sprintf("01 %c PIC 9 VALUE %d.", 'A'+i, v))
			}
			src := program(data,
				"MAIN.",
				"    IF "+tt.cond+" DISPLAY 'Y' ELSE DISPLAY 'N' END-IF.",
				"    STOP RUN.")
			got, err := execute(t, src, "", nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got != tt.want+"\n" {
				t.Errorf("IF %s = %q, want %q", tt.cond, got, tt.want+"\n")
			}
		})
	}
}

func TestRun_PerformLoops(t *testing.T) {
	tests := []struct {
		name string
		data []string
		proc []string
		want string
	}{
		{
			name: "until already true",
			data: []string{"01 I PIC 9 VALUE 0."},
			proc: []string{
				"MAIN.",
				"    PERFORM UNTIL I = 0",
				"        DISPLAY 'BODY'",
				"        MOVE 0 TO I",
				"    END-PERFORM.",
				"    DISPLAY 'END'.",
				"    STOP RUN.",
			},
			want: "END\n",
		},
		{
			name: "varying by two",
			data: []string{"01 I PIC 9."},
			proc: []string{
				"MAIN.",
				"    PERFORM VARYING I FROM 1 BY 2 UNTIL I > 5",
				"        DISPLAY I",
				"    END-PERFORM.",
				"    STOP RUN.",
			},
			want: "1\n3\n5\n",
		},
		{
			name: "varying a paragraph downwards",
			data: []string{"01 I PIC 9."},
			proc: []string{
				"MAIN.",
				"    PERFORM SHOW VARYING I FROM 3 BY -1 UNTIL I < 1.",
				"    STOP RUN.",
				"SHOW.",
				"    DISPLAY I.",
			},
			want: "3\n2\n1\n",
		},
		{
			name: "varying never entered",
			data: []string{"01 I PIC 9."},
			proc: []string{
				"MAIN.",
				"    PERFORM VARYING I FROM 5 BY 1 UNTIL I > 4",
				"        DISPLAY I",
				"    END-PERFORM.",
				"    DISPLAY 'I=' I.",
				"    STOP RUN.",
			},
			want: "I=5\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, program(tt.data, tt.proc...), "", nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_Files(t *testing.T) {
	src := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. FILEIO.",
		"ENVIRONMENT DIVISION.",
		"INPUT-OUTPUT SECTION.",
		"FILE-CONTROL.",
		"    SELECT OUTFILE ASSIGN TO 'out.txt'.",
		"DATA DIVISION.",
		"FILE SECTION.",
		"FD OUTFILE.",
		"01 OUT-REC PIC X(5).",
		"WORKING-STORAGE SECTION.",
		"01 EOF-FLAG PIC X VALUE 'N'.",
		"PROCEDURE DIVISION.",
		"MAIN.",
		"    OPEN OUTPUT OUTFILE.",
		"    MOVE 'ONE' TO OUT-REC.",
		"    WRITE OUT-REC.",
		"    MOVE 'TWO' TO OUT-REC.",
		"    WRITE OUT-REC.",
		"    CLOSE OUTFILE.",
		"    OPEN INPUT OUTFILE.",
		"    PERFORM UNTIL EOF-FLAG = 'Y'",
		"        READ OUTFILE",
		"            AT END MOVE 'Y' TO EOF-FLAG",
		"            NOT AT END DISPLAY '[' OUT-REC ']'",
		"        END-READ",
		"    END-PERFORM.",
		"    CLOSE OUTFILE.",
		"    STOP RUN.",
	)
	disk := vm.NewDisk()
	got, err := execute(t, src, "", disk)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := "[ONE  ]\n[TWO  ]\n"; got != want {
		t.Errorf("output %q, want %q", got, want)
	}
	data, err := disk.Read("out.txt")
	if err != nil {
		t.Fatal(err)
	}
	if want := "ONE  \nTWO  \n"; string(data) != want {
		t.Errorf("out.txt = %q, want %q", data, want)
	}
}

func TestRun_Failures(t *testing.T) {
	t.Run("bad number", func(t *testing.T) {
		_, err := execute(t, program([]string{"01 N PIC 9(2)."},
			"MAIN.", "    MOVE 'AB' TO N.", "    STOP RUN."), "", nil)
		if err == nil || !strings.Contains(err.Error(), "FormatException") {
			t.Errorf("Run error = %v, want a FormatException", err)
		}
	})
	t.Run("missing input file", func(t *testing.T) {
		src := fixed(
			"IDENTIFICATION DIVISION.",
			"PROGRAM-ID. FILEIO.",
			"ENVIRONMENT DIVISION.",
			"INPUT-OUTPUT SECTION.",
			"FILE-CONTROL.",
			"    SELECT INFILE ASSIGN TO 'missing.txt'.",
			"DATA DIVISION.",
			"FILE SECTION.",
			"FD INFILE.",
			"01 IN-REC PIC X(5).",
			"PROCEDURE DIVISION.",
			"MAIN.",
			"    OPEN INPUT INFILE.",
			"    STOP RUN.",
		)
		_, err := execute(t, src, "", nil)
		if err == nil || !strings.Contains(err.Error(), "FileNotFoundException") {
			t.Errorf("Run error = %v, want a FileNotFoundException", err)
		}
	})
}
