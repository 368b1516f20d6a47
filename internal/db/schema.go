package db

// SchemaSQL defines the enrichment tables. Every statement is idempotent.
const SchemaSQL = `
    -- ==========================================================================
    -- MONITORED ENTITY (operator-curated catalog)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS monitored_entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON monitored_entity TYPE string;
    DEFINE FIELD IF NOT EXISTS aliases ON monitored_entity TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS type ON monitored_entity TYPE string
        ASSERT $value IN ["person", "show", "couple", "brand"];
    DEFINE FIELD IF NOT EXISTS active ON monitored_entity TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS created_at ON monitored_entity TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON monitored_entity TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS monitored_entity_active ON monitored_entity FIELDS active;

    -- ==========================================================================
    -- COMMENT
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS comment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS text ON comment TYPE string;
    DEFINE FIELD IF NOT EXISTS likes ON comment TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS post_caption ON comment TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS posted_at ON comment TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS enriched_at ON comment TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS comment_posted_at ON comment FIELDS posted_at;
    DEFINE INDEX IF NOT EXISTS comment_enriched_at ON comment FIELDS enriched_at;

    -- ==========================================================================
    -- SIGNAL
    -- ==========================================================================
    -- entity_key is "" for comment-level signals so the unique index covers them.
    DEFINE TABLE IF NOT EXISTS signal SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS comment_id ON signal TYPE string;
    DEFINE FIELD IF NOT EXISTS entity_key ON signal TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS kind ON signal TYPE string;
    DEFINE FIELD IF NOT EXISTS value ON signal TYPE string;
    DEFINE FIELD IF NOT EXISTS numeric_value ON signal TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS weight ON signal TYPE float DEFAULT 1.0;
    DEFINE FIELD IF NOT EXISTS confidence ON signal TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS model ON signal TYPE string;
    DEFINE FIELD IF NOT EXISTS extracted_at ON signal TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS signal_key ON signal FIELDS comment_id, entity_key, kind, model UNIQUE;
    DEFINE INDEX IF NOT EXISTS signal_comment ON signal FIELDS comment_id;

    -- ==========================================================================
    -- DISCOVERED ENTITY (review queue, never auto-promoted)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS discovered_entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS key ON discovered_entity TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON discovered_entity TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON discovered_entity TYPE string;
    DEFINE FIELD IF NOT EXISTS first_seen ON discovered_entity TYPE datetime;
    DEFINE FIELD IF NOT EXISTS last_seen ON discovered_entity TYPE datetime;
    DEFINE FIELD IF NOT EXISTS mention_count ON discovered_entity TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS sample_mentions ON discovered_entity TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS reviewed ON discovered_entity TYPE bool DEFAULT false;

    DEFINE INDEX IF NOT EXISTS discovered_key ON discovered_entity FIELDS key UNIQUE;
    DEFINE INDEX IF NOT EXISTS discovered_queue ON discovered_entity FIELDS reviewed, mention_count;
`

// tables lists the schema tables in wipe order.
var tables = []string{"signal", "discovered_entity", "comment", "monitored_entity"}
