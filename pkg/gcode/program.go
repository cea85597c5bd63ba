// Package gcode reads G-code programs, selects the linear moves of the
// active print phase and parses them into structured moves.
package gcode

import (
	"bufio"
	"io"
	"os"
	"strings"

	simerrors "fdm-printer-sim/pkg/errors"
)

// Program is the ordered raw text of a G-code file.
type Program struct {
	Path  string
	Lines []string
}

// LoadProgram reads a G-code file from disk.
func LoadProgram(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerrors.ProgramError(path, err)
	}
	defer f.Close()

	p, err := ReadProgram(f)
	if err != nil {
		return nil, simerrors.ProgramError(path, err)
	}
	p.Path = path
	return p, nil
}

// ReadProgram reads a program from r, one instruction per line.
func ReadProgram(r io.Reader) (*Program, error) {
	p := &Program{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.Lines = append(p.Lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Commands returns the filtered move commands of the program.
func (p *Program) Commands() []string {
	cmds, _ := FilterWithStats(p.Lines)
	return cmds
}
