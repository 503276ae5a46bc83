package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

// Console implementa ports.Notifier escribiendo líneas compactas a stdout
// (o a cualquier io.Writer en tests).
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyEvent imprime un EngineEvent recién registrado.
func (c *Console) NotifyEvent(_ context.Context, e domain.EngineEvent) error {
	fmt.Fprintf(c.out, "[%s] %s user=%s %s: %s\n",
		e.Timestamp.Format("15:04:05"), e.Strategy, shortAddr(e.UserAddress), e.EventType, e.Message)
	return nil
}

// NotifyTradeDetected avisa de un trade observado en un trader seguido,
// antes de decidir si se copia.
func (c *Console) NotifyTradeDetected(_ context.Context, trader domain.FollowedTrader, trade domain.UpstreamTrade) error {
	name := trader.Alias
	if name == "" {
		name = shortAddr(trader.Address)
	}
	fmt.Fprintf(c.out, "[%s] detected %s %s %.2f shares @ %.4f ($%.2f) on %s\n",
		time.Now().Format("15:04:05"), name, trade.Side, trade.Size, trade.Price, trade.USD(), trade.Market)
	return nil
}

// NotifyTradeCopied avisa del resultado de una copia ejecutada.
func (c *Console) NotifyTradeCopied(_ context.Context, trader domain.FollowedTrader, trade domain.Trade) error {
	name := trader.Alias
	if name == "" {
		name = shortAddr(trader.Address)
	}

	status := "OK"
	if trade.Status != domain.TradeExecuted {
		status = string(trade.Status)
	}

	fmt.Fprintf(c.out, "[%s] copied %s %s %s $%.2f @ %.4f → %s\n",
		time.Now().Format("15:04:05"), name, trade.Side, trade.Market, trade.Amount, trade.Price, status)
	return nil
}

// PrintTrades imprime una tabla de trades recientes para las herramientas
// de inspección de CLI.
func (c *Console) PrintTrades(trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "  no trades recorded")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Time", "Strategy", "Side", "Market", "Amount", "Price", "Status")
	for i, t := range trades {
		table.Append(
			fmt.Sprintf("%d", i+1),
			t.Timestamp.Format("01-02 15:04"),
			string(t.Strategy),
			string(t.Side),
			truncate(t.Market, 30),
			fmt.Sprintf("$%.2f", t.Amount),
			fmt.Sprintf("%.4f", t.Price),
			string(t.Status),
		)
	}
	table.Render()
}

func shortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
