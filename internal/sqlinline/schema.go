package sqlinline

// QCreateSchema is idempotent and runs as a single simple-protocol batch.
const QCreateSchema = `--sql 68d197c0-4070-4fc7-a849-9762e8817c85
create table if not exists users (
    id uuid primary key default gen_random_uuid(),
    email text unique,
    credits integer not null default 0 check (credits >= 0),
    credits_total integer not null default 0,
    output_format text not null default 'PNG' check (output_format in ('PNG', 'JPG', 'WEBP')),
    default_quality integer not null default 90 check (default_quality between 10 and 100),
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists jobs (
    id uuid primary key,
    user_id uuid not null references users (id) on delete cascade,
    status text not null check (status in ('queued', 'processing', 'done', 'failed')),
    credits_cost integer not null default 0 check (credits_cost >= 0),
    error text,
    input_key text not null default 'pending',
    input_mime text not null,
    input_size bigint not null default 0,
    input_original_name text,
    output_key text,
    output_mime text,
    output_size bigint,
    output_format text not null default 'PNG',
    quality integer not null default 90,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create index if not exists jobs_user_created_idx on jobs (user_id, created_at desc);
create index if not exists jobs_status_updated_idx on jobs (status, updated_at);
`
