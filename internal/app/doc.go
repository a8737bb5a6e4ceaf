// Package app provides the Application Composition Layer for the token ledger.
//
// # Architecture Role
//
// The app package composes the ledger engine with its storage, metrics and
// background jobs. It is NOT a business logic layer: ledger rules live in
// internal/app/services/ledger.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/ledger/      # Data model (accounts, transactions, stakes, faucet)
//	├── services/ledger/    # Ledger engine, reward scheduler
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # LedgerStore, TransactionSink
//	│   ├── memory/         # In-memory store for tests and development
//	│   ├── postgres/       # PostgreSQL store
//	│   └── redis/          # Redis stream transaction sink
//	├── httpapi/            # HTTP handlers and routing
//	├── runtime/            # Process wiring (config, database, server)
//	├── system/             # Service lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/ledgerd/
//	      │
//	      ▼
//	internal/app/runtime ──► internal/config, internal/middleware
//	      │
//	      ▼
//	internal/app/httpapi
//	      │
//	      ▼
//	internal/app (composition)
//	      │
//	      ├──► internal/app/services/ledger ──► internal/app/domain/ledger
//	      │
//	      └──► internal/app/storage/{memory,postgres,redis}
//
// Every mutation is committed to the LedgerStore before it becomes visible in
// memory. The TransactionSink receives transactions only after the commit.
package app
