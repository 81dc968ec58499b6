package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバー（ページ、API、セッションストリーム）として起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションを定期削除するワーカーとして起動する。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みのマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーの/healthを確認して終了する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
