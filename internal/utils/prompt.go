package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stdin is where Prompt reads answers from.
var Stdin io.Reader = os.Stdin

func Prompt(message string) (string, error) {
	reader := bufio.NewReader(Stdin)
	fmt.Printf("%s: ", message)
	text, err := reader.ReadString('\n')
	if err != nil && !(err == io.EOF && text != "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
