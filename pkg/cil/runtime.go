package cil

// Method and constructor signatures of the base library members that
// generated code calls, written as they appear after call, callvirt or
// newobj. The interpreter in pkg/vm implements exactly these.
const (
	ObjectCtor      = "instance void [mscorlib]System.Object::.ctor()"
	ConsoleWrite    = "void [mscorlib]System.Console::Write(string, object[])"
	ConsoleWriteLn  = "void [mscorlib]System.Console::WriteLine(string, object[])"
	ConsoleReadLine = "string [mscorlib]System.Console::ReadLine()"
	EnvironmentExit = "void [mscorlib]System.Environment::Exit(int32)"
	MathMin         = "int32 [mscorlib]System.Math::Min(int32, int32)"
	Int32Parse      = "int32 [mscorlib]System.Int32::Parse(string)"

	StringFormat     = "string [mscorlib]System.String::Format(string, object)"
	StringFormatN    = "string [mscorlib]System.String::Format(string, object[])"
	StringConcat2    = "string [mscorlib]System.String::Concat(string, string)"
	StringConcat3    = "string [mscorlib]System.String::Concat(string, string, string)"
	StringEquality   = "bool [mscorlib]System.String::op_Equality(string, string)"
	StringCompareOrd = "int32 [mscorlib]System.String::CompareOrdinal(string, string)"
	StringLength     = "instance int32 [mscorlib]System.String::get_Length()"
	StringSubstring  = "instance string [mscorlib]System.String::Substring(int32)"
	StringSubstringN = "instance string [mscorlib]System.String::Substring(int32, int32)"
	StringPadRight   = "instance string [mscorlib]System.String::PadRight(int32)"
	StringTrim       = "instance string [mscorlib]System.String::Trim()"
	StringToUpper    = "instance string [mscorlib]System.String::ToUpper()"
	StringIndexOf    = "instance int32 [mscorlib]System.String::IndexOf(string)"

	ReaderType        = "class [mscorlib]System.IO.StreamReader"
	ReaderCtor        = "instance void [mscorlib]System.IO.StreamReader::.ctor(string)"
	ReaderReadLine    = "instance string [mscorlib]System.IO.StreamReader::ReadLine()"
	ReaderEndOfStream = "instance bool [mscorlib]System.IO.StreamReader::get_EndOfStream()"
	ReaderClose       = "instance void [mscorlib]System.IO.StreamReader::Close()"

	WriterType      = "class [mscorlib]System.IO.StreamWriter"
	WriterCtor      = "instance void [mscorlib]System.IO.StreamWriter::.ctor(string)"
	WriterCtorMode  = "instance void [mscorlib]System.IO.StreamWriter::.ctor(string, bool)"
	WriterWriteLine = "instance void [mscorlib]System.IO.StreamWriter::WriteLine(string, object[])"
	WriterFlush     = "instance void [mscorlib]System.IO.StreamWriter::Flush()"
	WriterClose     = "instance void [mscorlib]System.IO.StreamWriter::Close()"

	BoxInt32   = "[mscorlib]System.Int32"
	BoxBoolean = "[mscorlib]System.Boolean"
	ObjectType = "[mscorlib]System.Object"
)
