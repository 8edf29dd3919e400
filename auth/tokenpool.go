package auth

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

// TokenPool is a static file holding one upstream token per line.
type TokenPool struct {
	path string
	intn func(n int) int
}

func NewTokenPool(path string) *TokenPool {
	return &TokenPool{path: path, intn: rand.IntN}
}

// Draw picks one non-blank line uniformly at random. The file is read once,
// line by line, keeping a single candidate (reservoir sampling).
func (p *TokenPool) Draw() (string, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return "", fmt.Errorf("error opening token pool: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 4096), 64*1024)

	chosen := ""
	seen := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		seen++
		if p.intn(seen) == 0 {
			chosen = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading token pool: %w", err)
	}
	if seen == 0 {
		return "", fmt.Errorf("token pool %s is empty", p.path)
	}

	return chosen, nil
}
