package db

import (
    "database/sql"
    "fmt"
    "os"

    _ "github.com/lib/pq"
    "github.com/sirupsen/logrus"
)

var DB *sql.DB

func Init() {
    user := os.Getenv("DB_USER")
    pass := os.Getenv("DB_PASSWORD")
    host := os.Getenv("DB_HOST")
    port := os.Getenv("DB_PORT")
    name := os.Getenv("DB_NAME")

    dsn := fmt.Sprintf(
        "postgres://%s:%s@%s:%s/%s?sslmode=disable",
        user, pass, host, port, name,
    )

    var err error
    DB, err = sql.Open("postgres", dsn)
    if err != nil {
        logrus.Fatalf("failed to connect to DB: %v", err)
    }

    if err = DB.Ping(); err != nil {
        logrus.Fatalf("failed to ping DB: %v", err)
    }

    logrus.Infof("connected to database %s on %s", name, host)
}
