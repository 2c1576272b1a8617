package sqlinline

const QInsertJob = `--sql 65b67fce-dd02-4355-a41f-e0b71e6f8c53
insert into jobs (
    id, user_id, status, credits_cost, input_key, input_mime, input_size,
    input_original_name, output_format, quality, created_at, updated_at
)
values ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, nullif($8, ''), $9, $10, now(), now())
returning created_at, updated_at;
`

const QSelectJobByID = `--sql e5db47b7-e6e8-4a6e-9491-39871206a238
select id::text, user_id::text, status, credits_cost, coalesce(error, ''),
       input_key, input_mime, input_size, coalesce(input_original_name, ''),
       coalesce(output_key, ''), coalesce(output_mime, ''), coalesce(output_size, 0),
       output_format, quality, created_at, updated_at
from jobs
where id = $1::uuid;
`

const QSelectJobByIDForUpdate = `--sql 759a634a-ed04-488d-985b-b4ca2078ca9d
select id::text, user_id::text, status, credits_cost, coalesce(error, ''),
       input_key, input_mime, input_size, coalesce(input_original_name, ''),
       coalesce(output_key, ''), coalesce(output_mime, ''), coalesce(output_size, 0),
       output_format, quality, created_at, updated_at
from jobs
where id = $1::uuid
for update;
`

const QUpdateJob = `--sql 960fb433-dbb9-465b-b225-dd1f8566eebe
update jobs
set status = $2,
    error = nullif($3, ''),
    input_key = $4,
    input_mime = $5,
    input_size = $6,
    input_original_name = nullif($7, ''),
    output_key = nullif($8, ''),
    output_mime = nullif($9, ''),
    output_size = nullif($10::bigint, 0),
    updated_at = now()
where id = $1::uuid
returning updated_at;
`

const QDeleteJob = `--sql c0cad819-d4f4-46fd-a48e-4bd8ae846121
delete from jobs
where id = $1::uuid;
`

const QCountJobsCreatedBetween = `--sql be0ad4de-49b5-4678-8700-536af23f5e6c
select count(*)
from jobs
where user_id = $1::uuid
  and created_at >= $2
  and created_at < $3;
`

// QListJobs filters by optional status ($2) and an optional substring ($3)
// of the id, error or status.
const QListJobs = `--sql 45b27c6b-3576-4154-9836-9398e7d7bca6
select id::text, user_id::text, status, credits_cost, coalesce(error, ''),
       input_key, input_mime, input_size, coalesce(input_original_name, ''),
       coalesce(output_key, ''), coalesce(output_mime, ''), coalesce(output_size, 0),
       output_format, quality, created_at, updated_at
from jobs
where user_id = $1::uuid
  and ($2 = '' or status = $2)
  and ($3 = '' or strpos(id::text, $3) > 0 or strpos(coalesce(error, ''), $3) > 0 or strpos(status, $3) > 0)
order by created_at desc
limit $4;
`

const QListStaleJobs = `--sql dc3263e2-88a2-407b-8a7f-39549b67dac3
select id::text, user_id::text, status, credits_cost, coalesce(error, ''),
       input_key, input_mime, input_size, coalesce(input_original_name, ''),
       coalesce(output_key, ''), coalesce(output_mime, ''), coalesce(output_size, 0),
       output_format, quality, created_at, updated_at
from jobs
where status = $1
  and updated_at < $2
order by updated_at asc
limit $3;
`
