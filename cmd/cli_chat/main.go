package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"signal-relay/internal/domain"
)

type cliConfig struct {
	ServerURL   string `env:"RELAY_URL" envDefault:"ws://localhost:8080/ws"`
	Address     string `env:"RELAY_ADDRESS"`
	DisplayName string `env:"RELAY_DISPLAY_NAME"`
}

const help = `Comandos:
  /add <address>            agregar contacto
  /friends                  listar contactos
  /msg <address> <texto>    enviar mensaje
  /history <address>        ver conversación
  /call <address>           llamar
  /accept <address>         aceptar llamada
  /reject <address>         rechazar llamada
  /hangup <address>         colgar
  /help                     esta ayuda
  /quit                     salir`

func main() {
	_ = godotenv.Load()

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	reader := bufio.NewReader(os.Stdin)
	if cfg.Address == "" {
		cfg.Address = prompt(reader, "Dirección: ")
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = prompt(reader, "Nombre visible: ")
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.ServerURL, nil)
	if err != nil {
		log.Fatalf("conectar a %s: %v", cfg.ServerURL, err)
	}
	defer conn.Close()

	go printEvents(conn)

	if err := send(conn, domain.EventLogin, domain.LoginPayload{Address: cfg.Address, DisplayName: cfg.DisplayName}); err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Println(help)

	for {
		line := prompt(reader, "> ")
		if line == "" {
			continue
		}
		if line == "/quit" {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
		event, payload, err := parseCommand(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if err := send(conn, event, payload); err != nil {
			log.Fatalf("enviar %s: %v", event, err)
		}
	}
}

// parseCommand traduce una línea de la consola al evento del protocolo.
func parseCommand(line string) (string, any, error) {
	fields := strings.Fields(line)
	cmd := fields[0]
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	switch cmd {
	case "/help":
		return "", nil, fmt.Errorf("%s", help)
	case "/friends":
		return domain.EventGetFriends, struct{}{}, nil
	}
	if arg(1) == "" {
		return "", nil, fmt.Errorf("falta la dirección, escribe /help")
	}

	switch cmd {
	case "/add":
		return domain.EventAddFriend, domain.AddFriendPayload{FriendAddress: arg(1)}, nil
	case "/msg":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(line, cmd)), arg(1)))
		return domain.EventMessage, domain.MessagePayload{To: arg(1), Text: text}, nil
	case "/history":
		return domain.EventGetConversation, domain.GetConversationPayload{With: arg(1)}, nil
	case "/call":
		return domain.EventCallRequest, domain.CallTargetPayload{To: arg(1)}, nil
	case "/accept":
		return domain.EventCallAccept, domain.CallAnswerPayload{From: arg(1)}, nil
	case "/reject":
		return domain.EventCallReject, domain.CallAnswerPayload{From: arg(1)}, nil
	case "/hangup":
		return domain.EventCallEnd, domain.CallTargetPayload{To: arg(1)}, nil
	default:
		return "", nil, fmt.Errorf("comando desconocido %q\n%s", cmd, help)
	}
}

func send(conn *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(domain.Envelope{Event: event, Data: data})
}

func printEvents(conn *websocket.Conn) {
	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			fmt.Printf("\nconexión cerrada: %v\n", err)
			os.Exit(0)
		}
		fmt.Printf("\n<< %s %s\n> ", env.Event, string(env.Data))
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	text, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal(err)
	}
	return strings.TrimSpace(text)
}
