// irischeck probes the Iris relay: /config over HTTP, then a short WS listen window.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	appcfg "github.com/park285/kakao-minigame-bot/internal/config"
	"github.com/park285/kakao-minigame-bot/internal/irisfast"
)

func main() {
	window := flag.Duration("listen", 10*time.Second, "how long to print inbound WS messages")
	room := flag.String("send", "", "room to send a test message to (empty: skip)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := &appcfg.AppConfig{
		IrisBaseURL: os.Getenv("IRIS_BASE_URL"),
		IrisWSURL:   os.Getenv("IRIS_WS_URL"),
		XUserID:     os.Getenv("X_USER_ID"),
		XUserEmail:  os.Getenv("X_USER_EMAIL"),
		XSessionID:  os.Getenv("X_SESSION_ID"),
	}
	if cfg.IrisBaseURL == "" {
		log.Fatal("IRIS_BASE_URL is required")
	}

	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(cfg.IrisHeaders),
		irisfast.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ic, err := client.GetConfig(ctx)
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: bot=%s id=%d port=%d polling=%d rate=%d endpoint=%s",
			ic.BotName, ic.BotID, ic.Port, ic.PollingSpeed, ic.MessageRate, ic.WebserverEndpoint)
	}
	if *room != "" {
		if err := client.SendText(ctx, *room, "irischeck "+time.Now().Format(time.RFC3339)); err != nil {
			log.Printf("/reply error: %v", err)
		} else {
			log.Printf("/reply ok: room=%s", *room)
		}
	}

	if cfg.IrisWSURL == "" {
		log.Println("IRIS_WS_URL not set; skipping WS check")
		return
	}

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetHeaderProvider(cfg.IrisHeaders)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		fmt.Printf("WS msg room=%s user=%s name=%s mentions=%v text=%q\n",
			msg.Room, msg.UserID(), msg.SenderName(), msg.MentionIDs(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	t := time.NewTimer(*window)
	<-t.C

	_ = ws.Close(context.Background())
}
