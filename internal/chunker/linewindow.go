package chunker

import "strings"

// LineWindowChunker returns a ChunkFunc that splits code into
// overlapping line windows of windowSize lines, advancing by
// windowSize-overlap lines each step. Used for any language with no
// concrete AST chunker registered.
func LineWindowChunker(windowSize, overlap int) ChunkFunc {
	if overlap >= windowSize {
		overlap = windowSize / 2
	}
	return func(code, filePath, language string) ([]Chunk, error) {
		lines := strings.Split(code, "\n")
		if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
			return nil, nil
		}

		step := windowSize - overlap
		var chunks []Chunk
		for start := 0; start < len(lines); start += step {
			end := start + windowSize
			if end > len(lines) {
				end = len(lines)
			}
			chunks = append(chunks, Chunk{
				Content:   strings.Join(lines[start:end], "\n"),
				StartLine: start + 1,
				EndLine:   end,
			})
			if end == len(lines) {
				break
			}
		}
		return chunks, nil
	}
}

// DocumentationChunker returns a ChunkFunc that splits prose content
// on blank-line paragraph boundaries, marking every chunk as
// documentation. Used for markdown and other non-AST, non-code
// languages.
func DocumentationChunker() ChunkFunc {
	return func(code, filePath, language string) ([]Chunk, error) {
		lines := strings.Split(code, "\n")
		var chunks []Chunk
		var cur []string
		startLine := 1

		flush := func(endLine int) {
			if len(cur) == 0 {
				return
			}
			content := strings.TrimRight(strings.Join(cur, "\n"), "\n")
			if strings.TrimSpace(content) != "" {
				chunks = append(chunks, Chunk{
					Content:   content,
					StartLine: startLine,
					EndLine:   endLine,
					IsDoc:     true,
				})
			}
			cur = nil
		}

		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				flush(i)
				startLine = i + 2
				continue
			}
			cur = append(cur, line)
		}
		flush(len(lines))

		if len(chunks) == 0 && strings.TrimSpace(code) != "" {
			chunks = append(chunks, Chunk{Content: code, StartLine: 1, EndLine: len(lines), IsDoc: true})
		}
		return chunks, nil
	}
}
