package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// #region instances
// ReadInstances parses "index<TAB>sentence<TAB>label" lines. Blank lines are
// skipped; the label accepts anything strconv.ParseBool does.
func ReadInstances(r io.Reader) ([]Instance, error) {
	var out []Instance
	err := eachLine(r, func(lineNo int, fields []string) error {
		if len(fields) != 3 {
			return fmt.Errorf("line %d: expected index, sentence and label, got %d fields", lineNo, len(fields))
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: bad index %q: %w", lineNo, fields[0], err)
		}
		label, err := strconv.ParseBool(strings.TrimSpace(fields[2]))
		if err != nil {
			return fmt.Errorf("line %d: bad label %q: %w", lineNo, fields[2], err)
		}
		out = append(out, Instance{Index: idx, Text: fields[1], Label: label})
		return nil
	})
	return out, err
}
// #endregion instances

// #region background
// ReadBackground parses "index<TAB>sentence<TAB>sentence..." lines into a
// map from instance index to its background sentences in file order.
func ReadBackground(r io.Reader) (map[int][]string, error) {
	out := make(map[int][]string)
	err := eachLine(r, func(lineNo int, fields []string) error {
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: bad index %q: %w", lineNo, fields[0], err)
		}
		out[idx] = append(out[idx], fields[1:]...)
		return nil
	})
	return out, err
}

// Attach returns copies of instances with their background filled in.
// Instances without background keep an empty list.
func Attach(instances []Instance, background map[int][]string) []Instance {
	out := make([]Instance, len(instances))
	for i, inst := range instances {
		inst.Background = append([]string(nil), background[inst.Index]...)
		out[i] = inst
	}
	return out
}

// LoadFiles reads a question file and its background file.
func LoadFiles(questionPath, backgroundPath string) ([]Instance, error) {
	qf, err := os.Open(questionPath)
	if err != nil {
		return nil, fmt.Errorf("open questions: %w", err)
	}
	defer qf.Close()
	instances, err := ReadInstances(qf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", questionPath, err)
	}

	bf, err := os.Open(backgroundPath)
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}
	defer bf.Close()
	bg, err := ReadBackground(bf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", backgroundPath, err)
	}
	return Attach(instances, bg), nil
}
// #endregion background

func eachLine(r io.Reader, fn func(lineNo int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(lineNo, strings.Split(line, "\t")); err != nil {
			return err
		}
	}
	return sc.Err()
}
