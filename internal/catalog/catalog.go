package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Entry 把持仓文件名映射到策略显示名与 Composer 来源链接。
type Entry struct {
	File     string `yaml:"file"`     // 持仓文件名，不含扩展名
	Strategy string `yaml:"strategy"` // 策略显示名
	Source   string `yaml:"source"`   // Composer 策略链接
}

// Catalog 是策略映射表。文件名在表内必须唯一。
type Catalog struct {
	entries []Entry
	byFile  map[string]Entry
}

type catalogFile struct {
	Strategies []Entry `yaml:"strategies"`
}

// Load 从 YAML 文件加载映射表。
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: 读取映射表失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析映射表内容并校验。
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: 解析映射表失败: %w", err)
	}

	byFile := make(map[string]Entry, len(file.Strategies))
	var verr error
	for i, entry := range file.Strategies {
		entry.File = strings.TrimSpace(entry.File)
		entry.Strategy = strings.TrimSpace(entry.Strategy)
		entry.Source = strings.TrimSpace(entry.Source)
		file.Strategies[i] = entry

		if entry.File == "" {
			verr = multierr.Append(verr, fmt.Errorf("第%d条: file 不能为空", i+1))
			continue
		}
		if entry.Strategy == "" {
			verr = multierr.Append(verr, fmt.Errorf("第%d条(%s): strategy 不能为空", i+1, entry.File))
		}
		if _, dup := byFile[entry.File]; dup {
			verr = multierr.Append(verr, fmt.Errorf("文件名 %q 重复出现", entry.File))
			continue
		}
		byFile[entry.File] = entry
	}
	if verr != nil {
		return nil, fmt.Errorf("catalog: 映射表校验失败: %w", verr)
	}
	if len(file.Strategies) == 0 {
		return nil, errors.New("catalog: 映射表为空")
	}

	return &Catalog{
		entries: file.Strategies,
		byFile:  byFile,
	}, nil
}

// Lookup 按持仓文件名查询条目。
func (c *Catalog) Lookup(file string) (Entry, bool) {
	entry, ok := c.byFile[strings.TrimSpace(file)]
	return entry, ok
}

// Entries 返回全部条目，保持文件中的顺序。
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Len 返回条目数量。
func (c *Catalog) Len() int {
	return len(c.entries)
}
