// Package toolchain runs the external programs a build needs: the ilasm
// assembler and pkg-config.
package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// ErrToolNotFound is returned, wrapped, when a program is not on PATH.
var ErrToolNotFound = errors.New("tool not found")

const (
	successSentinel = "Operation completed successfully"
	failureSentinel = "FAILURE"
	errorPrefix     = "Error at"
)

// FindAssembler returns the path of ilasm2, or of ilasm when there is no
// ilasm2.
func FindAssembler() (string, error) {
	for _, name := range []string{"ilasm2", "ilasm"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.Wrap(ErrToolNotFound, "ilasm is not in your current path")
}

// Assemble runs "ilasm /debug ilFile" and watches its merged output for
// the success sentinel. Every output line is copied to verbose when it is
// not nil. The context bounds how long the assembler may run.
func Assemble(ctx context.Context, ilasm, ilFile string, verbose io.Writer) error {
	cmd := exec.CommandContext(ctx, ilasm, "/debug", ilFile)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return errors.Wrap(ErrToolNotFound, ilasm)
		}
		return errors.Wrapf(err, "start %s", ilasm)
	}

	var (
		ok      bool
		failure string
	)
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := scanner.Text()
		if verbose != nil {
			fmt.Fprintln(verbose, line)
		}
		switch {
		case strings.Contains(line, successSentinel):
			ok = true
		case strings.HasPrefix(line, errorPrefix), strings.Contains(line, failureSentinel):
			if failure == "" {
				failure = line
			}
		}
	}
	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "%s did not finish", ilasm)
	}
	switch {
	case failure != "":
		return errors.Errorf("assembly failed: %s", failure)
	case scanErr != nil:
		return errors.Wrap(scanErr, "read assembler output")
	case !ok && waitErr != nil:
		return errors.Wrapf(waitErr, "%s failed", ilasm)
	case !ok:
		return errors.Errorf("%s ended without reporting success", ilasm)
	}
	return nil
}

// PackageReferences asks pkg-config for the assemblies of a package and
// returns the paths of its -r: entries.
func PackageReferences(ctx context.Context, name string) ([]string, error) {
	path, err := exec.LookPath("pkg-config")
	if err != nil {
		return nil, errors.Wrap(ErrToolNotFound, "pkg-config is not in your current path")
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "--libs", name)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Errorf("pkg-config %s: %s", name, msg)
		}
		return nil, errors.Wrapf(err, "pkg-config %s", name)
	}
	return parseLibs(string(out)), nil
}

func parseLibs(out string) []string {
	var refs []string
	for _, f := range strings.Fields(out) {
		if ref, ok := strings.CutPrefix(f, "-r:"); ok && ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}
