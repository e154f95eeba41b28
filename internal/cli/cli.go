package cli

import (
	"fmt"
	"strings"

	"osintdeck/internal/commands"
	"osintdeck/internal/version"
)

func Run(args []string) int {
	if len(args) < 2 {
		return commands.RunServe(nil)
	}

	switch args[1] {
	case "-h", "--help", "help":
		fmt.Println(usage())
		return 0
	case "-v", "--version", "version":
		fmt.Printf("osintdeck %s (%s)\n", version.Version, version.Build)
		return 0
	case "reset-password":
		return commands.ResetPassword(args[2:])
	case "serve":
		return commands.RunServe(args[2:])
	default:
		// 其他参数均视为 serve 参数
		return commands.RunServe(args[1:])
	}
}

func usage() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "OSINTDeck (osintdeck) - OSINT 调查工作台")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "用法:")
	fmt.Fprintln(b, "  osintdeck [参数]                   启动 Web 服务")
	fmt.Fprintln(b, "  osintdeck <命令> [参数]")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "参数:")
	fmt.Fprintln(b, "  -p, --port PORT       指定监听端口")
	fmt.Fprintln(b, "  -b, --bind ADDR       指定绑定地址 (默认 0.0.0.0)")
	fmt.Fprintln(b, "  -u, --user USER       初始管理员用户名")
	fmt.Fprintln(b, "      --password PASS   初始管理员密码 (需配合 --user)")
	fmt.Fprintln(b, "      --debug           启用调试模式")
	fmt.Fprintln(b, "  -h, --help            显示帮助")
	fmt.Fprintln(b, "  -v, --version         显示版本")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "辅助命令:")
	fmt.Fprintln(b, "  reset-password <用户名> <新密码>   重置用户密码并解除锁定")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "示例:")
	fmt.Fprintln(b, "  osintdeck                                   # 启动 Web 服务")
	fmt.Fprintln(b, "  osintdeck -p 9090 -b 127.0.0.1              # 指定端口和绑定地址")
	fmt.Fprintln(b, "  osintdeck -u admin --password mypass123     # 启动并创建初始用户")
	return b.String()
}
