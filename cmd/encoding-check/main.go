package main

import (
	"os"
	"runtime"

	"nano-peft-go/nanopeft"
)

// Verifies emoji and Unicode output survive the console on every
// platform the validation binaries run on. On terminals that cannot
// take non-ASCII output the printer falls back to stripped text.
func main() {
	p := nanopeft.NewConsolePrinter()

	messages := []string{
		"🚀 Rocket emoji test",
		"📥 Download emoji test",
		"✅ Check mark emoji test",
		"🧪 Test tube emoji test",
		"💬 Speech bubble emoji test",
		"❓ Question mark emoji test",
		"🎯 Target emoji test",
		"📊 Chart emoji test",
		"🔧 Wrench emoji test",
		"Regular ASCII text should always work",
	}

	p.Println("Testing Unicode/Emoji Handling")
	p.Rule("=", 40)

	for i, message := range messages {
		p.Printf("%2d. %s\n", i+1, message)
	}

	p.Rule("-", 40)
	p.Println("✅ All tests completed!")

	p.Println("")
	p.Println("System Info:")
	p.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	p.Printf("Go version: %s\n", runtime.Version())
	p.Printf("LANG: %s\n", envOrNotSet("LANG"))
	p.Printf("LC_ALL: %s\n", envOrNotSet("LC_ALL"))
}

func envOrNotSet(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return "Not set"
}
