package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load 按 base.yaml -> <env>.yaml 的顺序合并配置并解码到 out。
// ${VAR} 占位符先查 secrets.env，再查进程环境变量；都没有时原样保留，
// 由调用方校验。
func Load(env, configDir string, out any) error {
	merged, err := LoadConfig(env, configDir)
	if err != nil {
		return err
	}

	raw, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("re-encode merged config: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode merged config: %w", err)
	}
	return nil
}

// LoadConfig returns the merged, placeholder-resolved config tree.
func LoadConfig(env, configDir string) (map[string]any, error) {
	if configDir == "" {
		configDir = "config"
	}

	merged, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load base.yaml: %w", err)
	}

	if env != "" && env != "base" {
		overlay, err := loadYAMLFile(filepath.Join(configDir, env+".yaml"))
		switch {
		case err == nil:
			merged = mergeMaps(merged, overlay)
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("load %s.yaml: %w", env, err)
		}
	}

	secrets, err := loadEnvFile(filepath.Join(configDir, "secrets.env"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load secrets.env: %w", err)
	}

	r := resolver{secrets: secrets}
	return r.resolveMap(merged), nil
}

func loadYAMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	tree := map[string]any{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

// loadEnvFile 读取 KEY=VALUE 格式的文件，忽略空行和 # 注释
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		vars[strings.TrimSpace(key)] = value
	}
	return vars, sc.Err()
}

// mergeMaps 返回 dst 被 src 覆盖后的新 map，嵌套 map 递归合并
func mergeMaps(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if dm, ok := out[k].(map[string]any); ok {
			if sm, ok := v.(map[string]any); ok {
				out[k] = mergeMaps(dm, sm)
				continue
			}
		}
		out[k] = v
	}
	return out
}

type resolver struct {
	secrets map[string]string
}

func (r resolver) lookup(key string) (string, bool) {
	if v, ok := r.secrets[key]; ok {
		return v, true
	}
	return os.LookupEnv(key)
}

func (r resolver) resolveMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = r.resolve(v)
	}
	return out
}

func (r resolver) resolve(v any) any {
	switch val := v.(type) {
	case string:
		return r.expand(val)
	case map[string]any:
		return r.resolveMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.resolve(item)
		}
		return out
	}
	return v
}

// expand replaces ${VAR} references. Unknown names and bare $ stay as written.
func (r resolver) expand(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			break
		}
		key := s[start+2 : start+end]
		b.WriteString(s[:start])
		if v, ok := r.lookup(key); ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[start : start+end+1])
		}
		s = s[start+end+1:]
	}
	b.WriteString(s)
	return b.String()
}

// GetEnv 获取环境变量，未设置时返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 返回 CONFIG_ENV，默认为 local
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
