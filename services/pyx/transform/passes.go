// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transform rewrites Python source for execution under a
// WebAssembly Python runtime: async wrapping, package-install directives,
// stdout capture, exception serialization, input() mocking, and
// last-expression result extraction.
//
// Every pass is a pure text rewrite (str in, str out) and never fails.
// Composition is the caller's business; Prepare applies the canonical
// order.
package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/pyx/services/pyx/config"
)

// mainWrapperName is the function the runtime invokes.
const mainWrapperName = "__pyx_main__"

// Prepare applies the full pipeline in canonical order.
func Prepare(code string) string {
	code = RewriteImports(code)
	code = WrapTopLevelAwait(code)
	code = CapturePrint(code)
	code = ExtractReturnValue(code)
	code = WrapExceptions(code)
	code = WrapAsync(code)
	return code
}

// =============================================================================
// Async wrapping
// =============================================================================

// WrapAsync wraps the entire source in `async def __pyx_main__():`, every
// original line indented by four spaces. Empty lines remain empty; empty
// input produces a `pass` body. Wrapping is never collapsed: wrapping twice
// nests twice.
func WrapAsync(code string) string {
	header := "async def " + mainWrapperName + "():\n"
	if strings.TrimSpace(code) == "" {
		return header + "    pass"
	}
	return header + indentBlock(code)
}

// indentBlock indents every non-empty line by four spaces.
func indentBlock(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "    " + line
		}
	}
	return strings.Join(lines, "\n")
}

var (
	asyncDefRe  = regexp.MustCompile(`^(\s*)async\s+def\s`)
	bareAwaitRe = regexp.MustCompile(`\bawait\s`)
)

// WrapTopLevelAwait scans for a bare `await` outside any `async def` block
// and applies WrapAsync when one is found; otherwise the input is returned
// unchanged. Containment is tracked by the indentation of the enclosing
// `async def` header; comment and empty lines are skipped.
func WrapTopLevelAwait(code string) string {
	insideAsync := false
	asyncIndent := 0

	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := indentWidth(line)

		if insideAsync && indent <= asyncIndent {
			insideAsync = false
		}
		if m := asyncDefRe.FindStringSubmatch(line); m != nil {
			insideAsync = true
			asyncIndent = indentWidth(line)
			continue
		}
		if !insideAsync && bareAwaitRe.MatchString(line) {
			return WrapAsync(code)
		}
	}
	return code
}

func indentWidth(line string) int {
	width := 0
	for _, c := range line {
		switch c {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		default:
			return width
		}
	}
	return width
}

// =============================================================================
// Import rewriting
// =============================================================================

var (
	importLineRe  = regexp.MustCompile(`^(\s*)(?:import|from)\s+([A-Za-z_]\w*)`)
	installLineRe = regexp.MustCompile(`^\s*await micropip\.install\("([^"]+)"\)`)
)

// RewriteImports inserts `await micropip.install("X")` before every import
// of a top-level module X outside the Python standard library. The original
// import line is kept. Duplicate installs are suppressed within one call,
// and existing install directives count as already installed, so a second
// pass adds no new lines.
func RewriteImports(code string) string {
	stdlib := config.StdlibModules()
	installed := map[string]bool{}

	lines := strings.Split(code, "\n")
	for _, line := range lines {
		if m := installLineRe.FindStringSubmatch(line); m != nil {
			installed[m[1]] = true
		}
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if m := importLineRe.FindStringSubmatch(line); m != nil {
			module := m[2]
			if !stdlib[module] && !installed[module] {
				installed[module] = true
				out = append(out, fmt.Sprintf(`%sawait micropip.install("%s")`, m[1], module))
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// =============================================================================
// Stdout capture
// =============================================================================

// capturePrintHeader redirects stdout into an in-memory buffer the runtime
// reads back after execution.
const capturePrintHeader = `import sys
import io
__pyx_stdout__ = io.StringIO()
__pyx_saved_stdout__ = sys.stdout
sys.stdout = __pyx_stdout__
`

// CapturePrint prepends the stdout-capture setup block; the user's code
// follows verbatim.
func CapturePrint(code string) string {
	return capturePrintHeader + code
}

// =============================================================================
// Return-value extraction
// =============================================================================

// statementKeywords are the line openers that preclude rewriting the final
// line into a result assignment. Entries with a colon match literally.
var statementKeywords = []string{
	"def", "class", "if", "elif", "else:", "for", "while", "try:",
	"except", "finally:", "with", "return", "raise", "import", "from",
	"pass", "break", "continue", "@",
}

// ExtractReturnValue rewrites the last meaningful line into
// `__pyx_result__ = <expr>` when that line is a bare expression. Blank and
// comment-only lines are skipped; statement lines and assignments are left
// alone. Leading indentation and trailing comments are preserved.
func ExtractReturnValue(code string) string {
	lines := strings.Split(code, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if startsWithStatementKeyword(trimmed) || isAssignmentLine(trimmed) {
			return code
		}

		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		expr, comment := splitTrailingComment(strings.TrimLeft(line, " \t"))
		expr = strings.TrimRight(expr, " \t")
		newLine := indent + "__pyx_result__ = " + expr
		if comment != "" {
			newLine += "  " + comment
		}
		lines[i] = newLine
		return strings.Join(lines, "\n")
	}
	return code
}

func startsWithStatementKeyword(trimmed string) bool {
	for _, kw := range statementKeywords {
		if kw == "@" {
			if strings.HasPrefix(trimmed, "@") {
				return true
			}
			continue
		}
		if strings.HasSuffix(kw, ":") {
			if strings.HasPrefix(trimmed, kw) {
				return true
			}
			continue
		}
		if trimmed == kw || strings.HasPrefix(trimmed, kw+" ") || strings.HasPrefix(trimmed, kw+"(") {
			return true
		}
	}
	return false
}

// isAssignmentLine reports whether the line contains an `=` that is not
// part of a comparison operator and not behind a lambda.
func isAssignmentLine(trimmed string) bool {
	lambdaIdx := -1
	if idx := strings.Index(trimmed, "lambda"); idx >= 0 {
		lambdaIdx = idx
	}
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '=' {
			continue
		}
		if lambdaIdx >= 0 && i > lambdaIdx {
			continue
		}
		if i+1 < len(trimmed) && trimmed[i+1] == '=' {
			i++ // skip ==
			continue
		}
		if i > 0 {
			switch trimmed[i-1] {
			case '=', '!', '<', '>':
				continue
			}
		}
		return true
	}
	return false
}

// splitTrailingComment separates a trailing comment, respecting string
// literals so a `#` inside quotes does not count.
func splitTrailingComment(line string) (code, comment string) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '#':
			return line[:i], line[i:]
		}
	}
	return line, ""
}

// =============================================================================
// input() mocking
// =============================================================================

var inputCallRe = regexp.MustCompile(`(^|[^\w.])input\(`)

// MockInput replaces every standalone `input(` call with
// `await __pyx_input__(` so the runtime can service prompts asynchronously.
// Attribute access such as `obj.input(` is left alone.
func MockInput(code string) string {
	return inputCallRe.ReplaceAllString(code, "${1}await __pyx_input__(")
}

// =============================================================================
// Exception serialization
// =============================================================================

const wrapExceptionsHeader = `import traceback
__pyx_error__ = None
try:
`

const wrapExceptionsFooter = `
except Exception as __pyx_exc__:
    __pyx_error__ = {'type': type(__pyx_exc__).__name__, 'message': str(__pyx_exc__), 'traceback': traceback.format_exc()}`

// WrapExceptions wraps the source in a try block that serializes any raised
// exception into `__pyx_error__` for the runtime to inspect.
func WrapExceptions(code string) string {
	body := indentBlock(code)
	if strings.TrimSpace(code) == "" {
		body = "    pass"
	}
	return wrapExceptionsHeader + body + wrapExceptionsFooter
}
