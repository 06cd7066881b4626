package protect

import (
	"fmt"
	"os"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Matcher 判断一个目录行的路径是否受保护
// 受保护的行及其对象永远不会被删除
type Matcher struct {
	rules *gitignore.GitIgnore
}

// NewMatcher 编译保护规则 (gitignore 语法)
// patterns: 配置中的内联规则
// ruleFile: 可选的规则文件，为空或不存在时忽略
func NewMatcher(patterns []string, ruleFile string) (*Matcher, error) {
	// 1. 规则文件存在时与内联规则合并编译
	if ruleFile != "" {
		if _, err := os.Stat(ruleFile); err == nil {
			rules, err := gitignore.CompileIgnoreFileAndLines(ruleFile, patterns...)
			if err != nil {
				return nil, fmt.Errorf("failed to compile protect rules %s: %w", ruleFile, err)
			}
			return &Matcher{rules: rules}, nil
		}
	}

	// 2. 只有内联规则
	if len(patterns) == 0 {
		return &Matcher{}, nil
	}
	return &Matcher{rules: gitignore.CompileIgnoreLines(patterns...)}, nil
}

// Empty 没有任何规则
func (m *Matcher) Empty() bool {
	return m == nil || m.rules == nil
}

// Protected 检查路径是否命中保护规则
// path 是目录表中的相对路径 (例如 "files/Photos/a.jpg")
func (m *Matcher) Protected(path string) bool {
	if m.Empty() {
		return false
	}
	return m.rules.MatchesPath(path)
}
