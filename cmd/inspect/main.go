// Command inspect dumps the live presence and topic membership tables from
// the shared Redis store. Handy next to a running relay to see which
// connections exist, who owns them, and what they are subscribed to.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"
)

const (
	connPrefix  = "presence:conn:"
	userPrefix  = "presence:user:"
	topicPrefix = "topic:"
)

func main() {
	_ = godotenv.Load()
	var config struct {
		RedisURL string `env:"REDIS_URL,required=true"`
	}
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		log.Fatalf("Invalid redis url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis unreachable: %v", err)
	}

	if err := printPresence(ctx, client); err != nil {
		log.Fatalf("Presence scan failed: %v", err)
	}
	fmt.Println()
	if err := printTopics(ctx, client); err != nil {
		log.Fatalf("Topic scan failed: %v", err)
	}
}

func printPresence(ctx context.Context, client *redis.Client) error {
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(" PRESENCE "))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Identity", "Connection", "Last Alive", "TTL"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	keys, err := scanKeys(ctx, client, userPrefix+"*")
	if err != nil {
		return err
	}
	sort.Strings(keys)

	for _, key := range keys {
		identity := strings.TrimPrefix(key, userPrefix)
		conns, err := client.SMembers(ctx, key).Result()
		if err != nil {
			return err
		}
		sort.Strings(conns)
		for _, conn := range conns {
			hash, err := client.HGetAll(ctx, connPrefix+conn).Result()
			if err != nil {
				return err
			}
			ttl, err := client.TTL(ctx, connPrefix+conn).Result()
			if err != nil {
				return err
			}
			lastAlive := hash["last_alive_at"]
			if len(hash) == 0 {
				lastAlive = color.Red.Render("expired")
			}
			table.Append([]string{identity, conn, lastAlive, ttl.String()})
		}
	}
	table.Render()
	return nil
}

func printTopics(ctx context.Context, client *redis.Client) error {
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(" TOPICS "))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Topic", "Subscribers", "Connections"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	keys, err := scanKeys(ctx, client, topicPrefix+"*")
	if err != nil {
		return err
	}
	sort.Strings(keys)

	for _, key := range keys {
		conns, err := client.SMembers(ctx, key).Result()
		if err != nil {
			return err
		}
		sort.Strings(conns)
		table.Append([]string{
			strings.TrimPrefix(key, topicPrefix),
			fmt.Sprintf("%d", len(conns)),
			strings.Join(conns, ", "),
		})
	}
	table.Render()
	return nil
}

func scanKeys(ctx context.Context, client *redis.Client, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
