package email

import "strings"

// RedactEmail 日志中隐藏邮箱用户名
func RedactEmail(addr string) string {
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
