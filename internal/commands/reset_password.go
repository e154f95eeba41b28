package commands

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/logger"
	"osintdeck/internal/webconfig"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errUserNotFound = errors.New("user not found")

// ResetPassword handles `osintdeck reset-password [--activate] <user> <password>`.
// It is meant for an admin locked out of the web console.
func ResetPassword(args []string) int {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	activate := fs.Bool("activate", false, "同时启用被禁用的账户")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "用法: osintdeck reset-password [--activate] <用户名> <新密码>")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return 2
	}
	username, newPassword := fs.Arg(0), fs.Arg(1)

	if len(newPassword) < constants.MinPasswordLen {
		fmt.Fprintf(os.Stderr, "错误: 密码至少 %d 位\n", constants.MinPasswordLen)
		return 1
	}

	cfg, err := webconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		return 1
	}
	logger.Init(cfg.Log)

	if err := database.Init(cfg.Database, false); err != nil {
		fmt.Fprintf(os.Stderr, "数据库初始化失败: %v\n", err)
		return 1
	}
	defer database.Close()

	user, err := resetUserPassword(username, newPassword, *activate)
	if errors.Is(err, errUserNotFound) {
		fmt.Fprintf(os.Stderr, "用户 %s 不存在\n", username)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "密码重置失败: %v\n", err)
		return 1
	}

	fmt.Printf("✅ 用户 %s (%s) 的密码已重置，登录锁定已解除\n", user.Username, user.Role)
	if !user.IsActive {
		fmt.Println("⚠️  该账户仍处于禁用状态，可加 --activate 重新启用")
	}
	return 0
}

// resetUserPassword sets a new hash, clears the lockout and records the reset in the
// audit log under the "cli" actor.
func resetUserPassword(username, password string, activate bool) (*database.User, error) {
	repo := database.NewUserRepo()
	user, err := repo.FindByUsername(username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := repo.UpdatePassword(user.ID, string(hash)); err != nil {
		return nil, err
	}
	detail := "password reset from cli"
	if activate && !user.IsActive {
		if err := repo.SetActive(user.ID, true); err != nil {
			return nil, err
		}
		detail += ", account re-enabled"
	}

	database.NewAuditLogRepo().Create(&database.AuditLog{
		UserID:   user.ID,
		Username: "cli",
		Action:   constants.ActionPasswordReset,
		Result:   "success",
		Detail:   detail,
		IP:       "local",
	})
	logger.Auth.Info().Str("username", username).Bool("activate", activate).Msg("password reset from cli")
	return repo.FindByID(user.ID)
}
