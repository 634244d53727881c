package compiler

import (
	"fmt"

	"cobolc/pkg/cil"
)

func readerField(fd *FileDescription) string { return "__reader_" + mapName(fd.Name) }
func writerField(fd *FileDescription) string { return "__writer_" + mapName(fd.Name) }

func readerRef(fd *FileDescription) string {
	return fmt.Sprintf("%s %s::%s", cil.ReaderType, programClass, readerField(fd))
}

func writerRef(fd *FileDescription) string {
	return fmt.Sprintf("%s %s::%s", cil.WriterType, programClass, writerField(fd))
}

// path pushes the file name a SELECT clause assigns.
func (g *CodeGen) path(fd *FileDescription) error {
	c := fd.Control
	if c == nil {
		return semanticErrorf(g.line, "file %s has no SELECT entry in FILE-CONTROL", fd.Name)
	}
	if !c.AssignIsName {
		g.b.Emit("ldstr", cil.Quote(c.Assign))
		return nil
	}
	if c.AssignItem == nil {
		return semanticErrorf(g.line, "undefined variable %s", c.Assign)
	}
	t, err := g.load(ref{d: c.AssignItem.Storage()})
	if err != nil {
		return err
	}
	if err := g.convert(t, stringValue); err != nil {
		return err
	}
	g.b.Emit("callvirt", cil.StringTrim)
	return nil
}

func (g *CodeGen) open(s *OpenStatement) error {
	for _, f := range s.Files {
		if f.File == nil {
			return semanticErrorf(s.Line, "undefined file %s", f.Name)
		}
		g.b.Emit("ldarg.0")
		if err := g.path(f.File); err != nil {
			return err
		}
		switch f.Mode {
		case OpenInput:
			g.b.Emit("newobj", cil.ReaderCtor)
			g.b.Emit("stfld", readerRef(f.File))
		case OpenOutput:
			g.b.Emit("newobj", cil.WriterCtor)
			g.b.Emit("stfld", writerRef(f.File))
		case OpenExtend:
			g.b.Emit("ldc.i4.1")
			g.b.Emit("newobj", cil.WriterCtorMode)
			g.b.Emit("stfld", writerRef(f.File))
		default:
			return notImplemented(s.Line, "OPEN I-O")
		}
	}
	return nil
}

// close closes whichever stream of each file is open and forgets it.
func (g *CodeGen) close(s *CloseStatement) error {
	if len(s.Files) != len(s.Names) {
		return semanticErrorf(s.Line, "undefined file in CLOSE %v", s.Names)
	}
	for _, fd := range s.Files {
		for _, stream := range []struct{ field, closer string }{
			{readerRef(fd), cil.ReaderClose},
			{writerRef(fd), cil.WriterClose},
		} {
			skip := g.b.NewLabel()
			g.b.Emit("ldarg.0")
			g.b.Emit("ldfld", stream.field)
			g.b.Branch("brfalse", skip)
			g.b.Emit("ldarg.0")
			g.b.Emit("ldfld", stream.field)
			g.b.Emit("callvirt", stream.closer)
			g.b.Emit("ldarg.0")
			g.b.Emit("ldnull")
			g.b.Emit("stfld", stream.field)
			g.b.Mark(skip)
		}
	}
	return nil
}

// read reads one line into every record of the file:
//
//	if EndOfStream { AT END } else { line -> records [-> INTO]; NOT AT END }
func (g *CodeGen) read(s *ReadStatement) error {
	fd := s.File
	if fd == nil {
		return semanticErrorf(s.Line, "undefined file %s", s.Name)
	}
	more, end := g.b.NewLabel(), g.b.NewLabel()
	g.b.Emit("ldarg.0")
	g.b.Emit("ldfld", readerRef(fd))
	g.b.Emit("callvirt", cil.ReaderEndOfStream)
	g.b.Branch("brfalse", more)
	if err := g.sentences(s.AtEnd); err != nil {
		return err
	}
	g.b.Branch("br", end)

	g.b.Mark(more)
	g.line = s.Line
	g.b.Emit("ldarg.0")
	g.b.Emit("ldfld", readerRef(fd))
	g.b.Emit("callvirt", cil.ReaderReadLine)
	g.b.Emit("stloc.1")
	line := func() (valueType, error) {
		g.b.Emit("ldloc.1")
		return stringValue, nil
	}
	for _, rec := range fd.Records {
		if rec.Level != 1 || rec.RedefinesTarget != nil {
			continue
		}
		if err := g.store(ref{d: rec}, line); err != nil {
			return err
		}
	}
	if s.Into != nil {
		if s.Into.Def == nil {
			return semanticErrorf(s.Line, "cannot READ INTO %s", s.Into.Name)
		}
		if err := g.store(refOf(s.Into), line); err != nil {
			return err
		}
	}
	if err := g.sentences(s.NotAtEnd); err != nil {
		return err
	}
	g.b.Mark(end)
	return nil
}

// write appends a record to the file as one line, each elementary item
// padded to its size.
func (g *CodeGen) write(s *WriteStatement) error {
	rec := s.Record
	if rec.Def == nil || rec.Def.Storage().File == nil {
		return semanticErrorf(s.Line, "%s is not a file record", rec.Name)
	}
	fd := rec.Def.Storage().File
	if s.From != nil {
		if err := g.moveTo(s.From, rec); err != nil {
			return err
		}
	}
	items, err := g.formatItems([]Source{rec})
	if err != nil {
		return err
	}
	g.b.Emit("ldarg.0")
	g.b.Emit("ldfld", writerRef(fd))
	if err := g.formatArgs(items); err != nil {
		return err
	}
	g.b.Emit("callvirt", cil.WriterWriteLine)
	g.b.Emit("ldarg.0")
	g.b.Emit("ldfld", writerRef(fd))
	g.b.Emit("callvirt", cil.WriterFlush)
	return nil
}
