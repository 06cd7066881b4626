// Package confirm 是操作员确认的边界
//
// 只有输入 "yes" (忽略大小写与首尾空白) 才会继续，其它任何输入都视为拒绝。
package confirm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrAborted 操作员按下了 Ctrl+C
var ErrAborted = errors.New("aborted by operator")

// Label 确认提示
const Label = "Do you wish to clean up? Type `yes` to proceed"

// Confirmer 向操作员要一个是/否的答复
type Confirmer interface {
	Confirm(label string) (bool, error)
}

// Accepts 判断答复是否表示同意
func Accepts(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

// Prompt 交互式终端提示 (promptui)
type Prompt struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

func (p Prompt) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:  label,
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}

	result, err := prompt.Run()
	if err != nil {
		// Ctrl+C 中止
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		// Ctrl+D / EOF 视为拒绝
		if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return Accepts(result), nil
}

// LineReader 从非终端输入 (管道、CI) 读取一行答复
type LineReader struct {
	In  io.Reader
	Out io.Writer
}

func (l LineReader) Confirm(label string) (bool, error) {
	fmt.Fprintf(l.Out, "%s: ", label)

	line, err := bufio.NewReader(l.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(l.Out)
	return Accepts(line), nil
}

// AlwaysYes 用于 --yes
type AlwaysYes struct{}

func (AlwaysYes) Confirm(string) (bool, error) { return true, nil }

// New 根据环境选择确认方式
// 1. assumeYes: 不询问
// 2. stdin 是终端: promptui 交互提示
// 3. 否则: 读一行
func New(assumeYes bool) Confirmer {
	if assumeYes {
		return AlwaysYes{}
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return Prompt{Stdin: os.Stdin, Stdout: os.Stdout}
	}
	return LineReader{In: os.Stdin, Out: os.Stdout}
}

var (
	_ Confirmer = Prompt{}
	_ Confirmer = LineReader{}
	_ Confirmer = AlwaysYes{}
)
