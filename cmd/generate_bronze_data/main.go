package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// CEP, которые есть в ViaCEP, и заведомо ошибочные
var (
	knownCEPs   = []string{"01310-100", "20040-020", "30130-010", "70040-010", "40020-000", "80010-000", "01001000"}
	invalidCEPs = []string{"00000-000", "1234", "abcde-fgh", ""}
)

type order struct {
	OrderID   int      `json:"order_id"`
	UserID    int      `json:"user_id"`
	Items     []string `json:"items"`
	Total     float64  `json:"total"`
	Paid      bool     `json:"paid"`
	CreatedAt string   `json:"created_at"`
}

type event struct {
	Event  string         `json:"event"`
	UserID int            `json:"user_id"`
	At     string         `json:"at"`
	Meta   map[string]any `json:"meta"`
}

func main() {
	outDir := flag.String("out", "01-bronze-raw", "Directory for generated bronze files")
	users := flag.Int("users", 200, "Number of users")
	seed := flag.Int64("seed", 0, "Random seed (0 - random)")
	flag.Parse()

	if err := generate(*outDir, *users, *seed); err != nil {
		log.Fatalf("Failed to generate bronze data: %v", err)
	}
	fmt.Printf("Bronze data written to %s\n", *outDir)
}

func generate(dir string, users int, seed int64) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	faker := gofakeit.New(seed)

	if err := writeUsers(filepath.Join(dir, "users.csv"), faker, users); err != nil {
		return err
	}
	if err := writeOrders(filepath.Join(dir, "orders.json"), faker, users); err != nil {
		return err
	}
	if err := writeEvents(filepath.Join(dir, "events.json"), faker, users); err != nil {
		return err
	}
	// Файл неподдерживаемого формата, нормализатор его пропускает
	return os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(faker.Paragraph(1, 3, 10, " ")+"\n"), 0644)
}

func writeUsers(path string, faker *gofakeit.Faker, n int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"id", "name", "email", "cep", "score", "active"})

	var prev []string
	for i := 1; i <= n; i++ {
		// Каждая десятая строка - точный дубль предыдущей
		if prev != nil && i%10 == 0 {
			w.Write(prev)
			continue
		}

		cep := knownCEPs[faker.Number(0, len(knownCEPs)-1)]
		if faker.Number(1, 8) == 1 {
			cep = invalidCEPs[faker.Number(0, len(invalidCEPs)-1)]
		}
		score := ""
		if faker.Bool() {
			score = strconv.FormatFloat(faker.Float64Range(0, 10), 'f', 2, 64)
		}

		prev = []string{
			strconv.Itoa(i),
			faker.Name(),
			faker.Email(),
			cep,
			score,
			strconv.FormatBool(faker.Bool()),
		}
		w.Write(prev)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeOrders(path string, faker *gofakeit.Faker, users int) error {
	orders := make([]order, 0, users)
	for i := 1; i <= users; i++ {
		items := make([]string, faker.Number(1, 4))
		for j := range items {
			items[j] = faker.ProductName()
		}
		o := order{
			OrderID:   i,
			UserID:    faker.Number(1, users),
			Items:     items,
			Total:     faker.Price(5, 500),
			Paid:      faker.Bool(),
			CreatedAt: faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).Format(time.RFC3339),
		}
		orders = append(orders, o)
		if i%15 == 0 {
			orders = append(orders, o)
		}
	}

	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeEvents(path string, faker *gofakeit.Faker, users int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	kinds := []string{"login", "logout", "purchase", "view"}
	for i := 0; i < users*2; i++ {
		ev := event{
			Event:  kinds[faker.Number(0, len(kinds)-1)],
			UserID: faker.Number(1, users),
			At:     faker.Date().Format(time.RFC3339),
		}
		if faker.Bool() {
			ev.Meta = map[string]any{"ip": faker.IPv4Address(), "agent": faker.UserAgent()}
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return f.Close()
}
