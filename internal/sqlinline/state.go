// Package sqlinline holds every SQL statement the application runs. Each
// query starts with a --sql marker line carrying a stable id so log lines
// can be traced back to the exact statement.
package sqlinline

const QEnsureStateTable = `--sql 3f6c1d2a-8e4b-4f1c-9a7d-5b2e8c9f0a13
create table if not exists app_state (
    key        text primary key,
    data       bytea not null,
    updated_at timestamptz not null default now()
);
`

const QSelectState = `--sql 7b9e4a51-2c8d-4e6f-b0a3-1d5c7e9f2b48
select data
from app_state
where key = $1::text
limit 1;
`

const QUpsertState = `--sql c2d8f6e4-1a3b-4c5d-8e7f-9a0b1c2d3e4f
insert into app_state (key, data, updated_at)
values ($1::text, $2::bytea, now())
on conflict (key) do update set
    data = excluded.data,
    updated_at = now();
`
