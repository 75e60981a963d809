package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/betbot/bybit-adapter/pkg/secretstore"
)

// 把 .env 中的 API 凭证写入加密的 badger 库，之后守护进程可以不依赖明文 .env
func main() {
	var (
		inPath    = flag.String("in", ".env", "input .env file path")
		dbPath    = flag.String("badger", getenv("BYBIT_SECRET_DB", "data/secrets.badger"), "badger secrets db path")
		secretKey = flag.String("secret-key", getenv("SECRETSTORE_KEY", ""), "badger encryption key (32 bytes base64/hex)")
		keyVar    = flag.String("key-var", "BYBIT_API_KEY", "api key variable name in .env")
		secretVar = flag.String("secret-var", "BYBIT_API_SECRET", "api secret variable name in .env")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("secret key is required: set SECRETSTORE_KEY or pass -secret-key"))
	}

	env, err := godotenv.Read(*inPath)
	if err != nil {
		fatal(err)
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	if err := ss.SaveCredentials(env[*keyVar], env[*secretVar]); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "已写入 API 凭证到 badger：%s\n", *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
